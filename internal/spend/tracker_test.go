package spend

import (
	"context"
	"testing"
	"time"
)

func TestTracker_NilRedis_Record(t *testing.T) {
	tr := NewTracker(nil)
	// Record should be a no-op with nil Redis
	if err := tr.Record(context.Background(), "deepseek-r1", 0.002, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTracker_NilRedis_Get(t *testing.T) {
	tr := NewTracker(nil)
	day := time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	d, err := tr.Get(context.Background(), "deepseek-r1", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 23:30 at UTC-2 is already the next day in UTC
	if d.Day != "2026-03-15" {
		t.Errorf("Day = %q, want 2026-03-15", d.Day)
	}
	if d.Total() != 0 {
		t.Errorf("Total = %v, want 0", d.Total())
	}
}

func TestDailyKey(t *testing.T) {
	if got := dailyKey("qwen", "2026-01-02"); got != "predictor:spend:daily:qwen:2026-01-02" {
		t.Errorf("dailyKey = %q", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"0.25", 0.25},
		{"3", 3},
		{nil, 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseAmount(tt.in); got != tt.want {
			t.Errorf("parseAmount(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
