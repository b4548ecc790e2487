package durations

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    PossiblyInfinite
		wantErr bool
	}{
		{in: "infinite", want: Forever()},
		{in: "Infinite", want: Forever()},
		{in: "0", want: Finite(0)},
		{in: "3600", want: Finite(time.Hour)},
		{in: "-1", wantErr: true},
		{in: "1mo", wantErr: true},
		{in: "1y", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, c := range cases {
		got, err := Parse(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error, got none", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestElapsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if Forever().Elapsed(now.Add(-1000*time.Hour), now) {
		t.Error("infinite duration should never be elapsed")
	}

	d := Finite(time.Hour)
	if d.Elapsed(now, now.Add(30*time.Minute)) {
		t.Error("30m after a 1h TTL should not be elapsed")
	}
	if !d.Elapsed(now, now.Add(2*time.Hour)) {
		t.Error("2h after a 1h TTL should be elapsed")
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"infinite", "0", "42"} {
		d, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := d.String(); got != s {
			t.Errorf("String() round trip: Parse(%q).String() = %q", s, got)
		}
	}
}
