package connection

import (
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{
		Initial:    time.Second,
		Max:        8 * time.Second,
		Multiplier: 2,
		Jitter:     -1, // deterministic
	})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("delay %d: got %v, want %v", i, got, w)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("attempts = %d, want %d", b.Attempts(), len(want))
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2, Jitter: -1})
	b.Next()
	b.Next()

	b.Reset()
	if b.Attempts() != 0 {
		t.Errorf("attempts after reset = %d", b.Attempts())
	}
	if got := b.Next(); got != time.Second {
		t.Errorf("delay after reset = %v, want 1s", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2, Jitter: 0.25})
	for i := 0; i < 20; i++ {
		b.Reset()
		d := b.Next()
		if d < time.Second || d > 1250*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1s, 1.25s]", d)
		}
	}
}

func TestBackoffJitterDefaultsAndDisable(t *testing.T) {
	// A zero Jitter means "use the default factor", not "no jitter".
	b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Jitter: 0})
	if b.jitter != JitterFactor {
		t.Errorf("jitter = %v, want default %v", b.jitter, JitterFactor)
	}

	// Negative disables jitter and yields deterministic delays.
	b = NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Jitter: -1})
	for i := 0; i < 5; i++ {
		b.Reset()
		if got := b.Next(); got != time.Second {
			t.Fatalf("delay with disabled jitter = %v, want 1s", got)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff()
	d := b.Next()
	if d < InitialBackoff || d > InitialBackoff+time.Duration(float64(InitialBackoff)*JitterFactor) {
		t.Errorf("first delay %v outside default bounds", d)
	}
}
