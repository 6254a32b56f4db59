package resilience

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func tripBreaker(b *Breaker, n int) {
	for range n {
		_ = b.Execute(func() error { return errUpstream })
	}
}

func TestExecutePassesThroughWhenClosed(t *testing.T) {
	b := NewBreaker(3, time.Second)

	ran := false
	if err := b.Execute(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if !ran {
		t.Error("fn was not invoked")
	}
}

func TestOpensOnConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)
	tripBreaker(b, 3)

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() = %v, want ErrCircuitOpen", err)
	}
}

func TestCooldownAdmitsProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.clock = func() time.Time { return now }

	tripBreaker(b, 2)
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("before cooldown: Execute() = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(2 * time.Second)

	ran := false
	if err := b.Execute(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("probe: Execute() = %v", err)
	}
	if !ran {
		t.Fatal("probe fn was not invoked")
	}

	// Successful probe closes the circuit again.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("after probe: Execute() = %v", err)
	}
}

func TestFailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.clock = func() time.Time { return now }

	tripBreaker(b, 2)
	now = now.Add(2 * time.Second)

	_ = b.Execute(func() error { return errUpstream })

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() = %v, want ErrCircuitOpen after failed probe", err)
	}
}

func TestSuccessResetsStreak(t *testing.T) {
	b := NewBreaker(3, time.Second)

	tripBreaker(b, 2)
	_ = b.Execute(func() error { return nil })
	tripBreaker(b, 2)

	// Four failures total, but never three in a row.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute() = %v", err)
	}
}
