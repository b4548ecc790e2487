// Package durations provides a duration type that can represent "forever"
// alongside a concrete time.Duration, for token TTLs and retention windows
// that administrators may legitimately want to disable.
package durations

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PossiblyInfinite is a duration that is either a concrete, finite
// time.Duration or explicitly infinite. The zero value is zero seconds,
// not infinite — callers must set Infinite explicitly.
type PossiblyInfinite struct {
	Value    time.Duration
	Infinite bool
}

// Finite builds a finite PossiblyInfinite.
func Finite(d time.Duration) PossiblyInfinite {
	return PossiblyInfinite{Value: d}
}

// Forever returns the infinite sentinel.
func Forever() PossiblyInfinite {
	return PossiblyInfinite{Infinite: true}
}

// Parse accepts either the literal "infinite" or a plain non-negative
// integer number of seconds. Unlike time.ParseDuration it deliberately does
// NOT accept unit suffixes ("1mo", "1y", "2w") — those units are ambiguous
// once calendar months and leap years are involved, so retention and TTL
// configuration must be expressed in whole seconds and the ambiguity is
// rejected at load time rather than surfacing as a subtly wrong refresh
// interval later.
func Parse(s string) (PossiblyInfinite, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "infinite") {
		return Forever(), nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return PossiblyInfinite{}, fmt.Errorf("duration must be \"infinite\" or a whole number of seconds, got %q", s)
	}
	if n < 0 {
		return PossiblyInfinite{}, fmt.Errorf("duration must not be negative, got %d", n)
	}

	return Finite(time.Duration(n) * time.Second), nil
}

// String renders the duration back in the same format Parse accepts.
func (d PossiblyInfinite) String() string {
	if d.Infinite {
		return "infinite"
	}
	return strconv.FormatInt(int64(d.Value/time.Second), 10)
}

// Elapsed reports whether since plus the duration has already elapsed
// relative to now. An infinite duration is never elapsed.
func (d PossiblyInfinite) Elapsed(since time.Time, now time.Time) bool {
	if d.Infinite {
		return false
	}
	return now.After(since.Add(d.Value))
}

func (d PossiblyInfinite) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *PossiblyInfinite) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
