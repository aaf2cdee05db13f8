package services

import (
	"context"
	"testing"
)

// A default below the floor is clamped up at construction, so every fallback
// duration the resolver hands out is already valid.
func TestNewDurationResolverClampsDefault(t *testing.T) {
	r := NewDurationResolver(nil, 1.0, 2.0)
	if r.Default() != 2.0 {
		t.Errorf("default = %.2f, want clamped 2.0", r.Default())
	}

	r = NewDurationResolver(nil, 4.0, 2.0)
	if r.Default() != 4.0 {
		t.Errorf("default = %.2f, want 4.0", r.Default())
	}
}

func TestResolveEmptyPathUsesDefault(t *testing.T) {
	r := NewDurationResolver(nil, 4.0, 2.0)
	if got := r.Resolve(context.Background(), ""); got != 4.0 {
		t.Errorf("Resolve(\"\") = %.2f, want default 4.0", got)
	}
}
