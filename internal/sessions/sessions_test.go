package sessions

import (
	"errors"
	"testing"
)

func TestNewPool_Empty(t *testing.T) {
	t.Parallel()
	if _, err := NewPool(nil); err == nil {
		t.Fatal("expected error for empty pool")
	}
}

func TestPoolAdvance(t *testing.T) {
	t.Parallel()

	p, err := NewPool([]string{"a.session", "b.session", "c.session"})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	if got := p.Current(); got != "a.session" {
		t.Fatalf("Current() = %q, want a.session", got)
	}
	if got := p.Remaining(); got != 2 {
		t.Fatalf("Remaining() = %d, want 2", got)
	}

	next, err := p.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if next != "b.session" {
		t.Fatalf("Advance() = %q, want b.session", next)
	}

	if _, err := p.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if _, err := p.Advance(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Advance on exhausted pool = %v, want ErrExhausted", err)
	}
	if got := p.Current(); got != "c.session" {
		t.Fatalf("Current() after exhaustion = %q, want c.session", got)
	}
	if got := p.Remaining(); got != 0 {
		t.Fatalf("Remaining() after exhaustion = %d, want 0", got)
	}
}
