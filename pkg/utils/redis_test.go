package utils

import (
	"context"
	"testing"
	"time"
)

func TestPresenceScriptCompiles(t *testing.T) {
	// Compile-time smoke test: script should be initialized.
	if presenceTouchScript == nil {
		t.Fatalf("expected presence script to be initialized")
	}
}

func TestTouchPresence_RejectsBadArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := TouchPresence(ctx, nil, "k", "m", time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := ClearPresence(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
