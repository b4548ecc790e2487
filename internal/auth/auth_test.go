package auth

import (
	"context"
	"testing"

	"github.com/prose-im/prose-pod-api/internal/members"
)

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected nil identity on a bare context")
	}

	id := &Identity{JID: "alice@example.com", Role: members.RoleAdmin}
	ctx := NewContext(context.Background(), id)

	got := FromContext(ctx)
	if got != id {
		t.Fatalf("FromContext returned %+v, want %+v", got, id)
	}
}
