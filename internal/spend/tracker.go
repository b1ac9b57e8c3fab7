// Package spend keeps per-model daily spend counters in Redis.
package spend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPrimary  = "primary"
	fieldFallback = "fallback"
)

// Daily is the estimated USD spend attributed to one model on one UTC day.
// Fallback is the part served by the model's fallback endpoint.
type Daily struct {
	ModelID  string  `json:"model_id"`
	Day      string  `json:"day"`
	Primary  float64 `json:"primary_usd"`
	Fallback float64 `json:"fallback_usd"`
}

func (d Daily) Total() float64 { return d.Primary + d.Fallback }

// Tracker tracks daily spend per model via Redis.
type Tracker struct {
	rdb *redis.Client
	now func() time.Time
}

// NewTracker creates a spend tracker. If rdb is nil, recording is a no-op.
func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb, now: time.Now}
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func dailyKey(modelID, day string) string {
	return fmt.Sprintf("predictor:spend:daily:%s:%s", modelID, day)
}

// Record adds cost to the model's counter for today.
func (t *Tracker) Record(ctx context.Context, modelID string, costUSD float64, usedFallback bool) error {
	if t.rdb == nil || costUSD <= 0 {
		return nil
	}

	now := t.now().UTC()
	key := dailyKey(modelID, dayOf(now))
	field := fieldPrimary
	if usedFallback {
		field = fieldFallback
	}

	pipe := t.rdb.Pipeline()
	pipe.HIncrByFloat(ctx, key, field, costUSD)
	// Keep a week of history for the admin dashboard
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	pipe.Expire(ctx, key, endOfDay.Sub(now)+7*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the spend recorded for modelID on the given day. A missing key
// reads as zero.
func (t *Tracker) Get(ctx context.Context, modelID string, day time.Time) (Daily, error) {
	d := Daily{ModelID: modelID, Day: dayOf(day)}
	if t.rdb == nil {
		return d, nil
	}

	vals, err := t.rdb.HMGet(ctx, dailyKey(modelID, d.Day), fieldPrimary, fieldFallback).Result()
	if err != nil {
		return d, fmt.Errorf("read spend for %s: %w", modelID, err)
	}
	d.Primary = parseAmount(vals[0])
	d.Fallback = parseAmount(vals[1])
	return d, nil
}

// Today is Get for the current UTC day.
func (t *Tracker) Today(ctx context.Context, modelID string) (Daily, error) {
	return t.Get(ctx, modelID, t.now())
}

func parseAmount(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
