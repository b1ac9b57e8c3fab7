package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWindowFromRPS(t *testing.T) {
	tests := []struct {
		rps  float64
		want Window
	}{
		{1, Window{Limit: 1, Window: time.Second}},
		{10, Window{Limit: 10, Window: time.Second}},
		{2.6, Window{Limit: 3, Window: time.Second}},
		{0.5, Window{Limit: 1, Window: 2 * time.Second}},
		{0.25, Window{Limit: 1, Window: 4 * time.Second}},
	}

	for _, tt := range tests {
		if got := WindowFromRPS(tt.rps); got != tt.want {
			t.Errorf("WindowFromRPS(%v) = %+v, want %+v", tt.rps, got, tt.want)
		}
	}
}

func TestNewThrottle_Selection(t *testing.T) {
	if _, ok := NewThrottle("x", 0, 0, nil).(unlimited); !ok {
		t.Error("expected unlimited throttle for rps=0")
	}
	if _, ok := NewThrottle("x", 5, 2, nil).(*LocalThrottle); !ok {
		t.Error("expected local throttle without redis")
	}
}

func TestLocalThrottle_HonoursContext(t *testing.T) {
	th := NewLocalThrottle(0.001, 1)
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("first token should be free: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := th.Wait(ctx); err == nil {
		t.Error("expected error waiting past the deadline")
	}
}

func TestGate(t *testing.T) {
	g := NewGate(1)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled on full gate, got %v", err)
	}

	g.Release()
	if err := g.Acquire(context.Background()); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

func TestGate_Nil(t *testing.T) {
	g := NewGate(0)
	if g != nil {
		t.Fatal("expected nil gate for max=0")
	}
	if err := g.Acquire(context.Background()); err != nil {
		t.Errorf("nil gate should admit: %v", err)
	}
	g.Release()
}
