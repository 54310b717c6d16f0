package liveness

import (
	"testing"
	"time"
)

func TestNewCheckerDefaultTimeout(t *testing.T) {
	c := NewChecker()
	if c.Timeout != 2*time.Second {
		t.Errorf("NewChecker().Timeout = %v, want 2s", c.Timeout)
	}
}

func TestIsAliveUnreachableHostIsNotAnError(t *testing.T) {
	// Nothing listens on port 1 on loopback, so this exercises the
	// "advisory, not a hard failure" contract without needing a real device.
	c := &Checker{Timeout: 50 * time.Millisecond}
	alive, err := c.IsAlive("127.0.0.1", 1, "public")
	if err != nil {
		t.Fatalf("IsAlive() error = %v, want nil even on failure", err)
	}
	if alive {
		t.Error("IsAlive() = true against an unreachable host")
	}
}
