// Package store persists validated predictions and per-attempt bookkeeping.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/prediction-orchestrator/internal/types"
)

const (
	statsCacheTTL    = 5 * time.Minute
	statsCachePrefix = "predictor:stats:fallback:"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Meta is the bookkeeping stored next to a prediction. UsedFallback is for
// admin reporting only and never leaves the service.
type Meta struct {
	BatchID      string
	ModelID      string
	UsedFallback bool
}

// PredictionStore implements prediction persistence with PostgreSQL and caches
// aggregate reports in Redis.
type PredictionStore struct {
	db    DB
	redis *redis.Client
}

func NewPredictionStore(db DB, rdb *redis.Client) *PredictionStore {
	return &PredictionStore{db: db, redis: rdb}
}

// Save upserts the prediction of one model for one match. Re-running a batch
// overwrites the earlier prediction.
func (s *PredictionStore) Save(ctx context.Context, p types.Prediction, meta Meta) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO predictions (id, match_id, model_id, home_score, away_score, used_fallback, batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id, model_id) DO UPDATE SET
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			used_fallback = EXCLUDED.used_fallback,
			batch_id = EXCLUDED.batch_id,
			updated_at = NOW()
	`, uuid.New(), p.MatchID, meta.ModelID, p.HomeScore, p.AwayScore, meta.UsedFallback, meta.BatchID)
	if err != nil {
		return fmt.Errorf("save prediction %s/%s: %w", p.MatchID, meta.ModelID, err)
	}
	return nil
}

// LogAttempt records one attempt, successful or not, for cost and fallback
// reporting.
func (s *PredictionStore) LogAttempt(ctx context.Context, a types.Attempt) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO prediction_attempts (
			id, batch_id, match_id, model_id, used_fallback, success, error_kind,
			prompt_tokens, completion_tokens, estimated_cost_usd, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, uuid.New(), a.BatchID, a.MatchID, a.ModelID, a.UsedFallback, a.OK(), a.ErrorKind,
		a.Usage.PromptTokens, a.Usage.CompletionTokens, a.EstimatedCost, a.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("log attempt %s/%s: %w", a.MatchID, a.ModelID, err)
	}
	return nil
}

// FallbackStat aggregates a model's attempts since a point in time.
type FallbackStat struct {
	ModelID          string  `json:"model_id"`
	Total            int     `json:"total"`
	Fallbacks        int     `json:"fallbacks"`
	FallbackRate     float64 `json:"fallback_rate"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	FallbackCostUSD  float64 `json:"fallback_cost_usd"`
	// CostMultiplier is the mean cost of a fallback-served attempt over the mean
	// cost of a primary-served one. Zero when either side has no data.
	CostMultiplier float64 `json:"cost_multiplier"`
}

// FallbackStats returns per-model fallback figures, served from Redis when a
// fresh report exists.
func (s *PredictionStore) FallbackStats(ctx context.Context, since time.Time) ([]FallbackStat, error) {
	key := statsCacheKey(since)
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var stats []FallbackStat
			if err := json.Unmarshal(cached, &stats); err == nil {
				return stats, nil
			}
		}
	}

	stats, err := s.queryFallbackStats(ctx, since)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		data, err := json.Marshal(stats)
		if err == nil {
			s.redis.Set(ctx, key, data, statsCacheTTL)
		}
	}
	return stats, nil
}

func (s *PredictionStore) queryFallbackStats(ctx context.Context, since time.Time) ([]FallbackStat, error) {
	rows, err := s.db.Query(ctx, `
		SELECT model_id,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE used_fallback),
		       COALESCE(SUM(estimated_cost_usd), 0),
		       COALESCE(SUM(estimated_cost_usd) FILTER (WHERE used_fallback), 0)
		FROM prediction_attempts
		WHERE created_at >= $1
		GROUP BY model_id
		ORDER BY model_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query fallback stats: %w", err)
	}
	defer rows.Close()

	stats := []FallbackStat{}
	for rows.Next() {
		var st FallbackStat
		if err := rows.Scan(&st.ModelID, &st.Total, &st.Fallbacks, &st.EstimatedCostUSD, &st.FallbackCostUSD); err != nil {
			return nil, fmt.Errorf("scan fallback stats: %w", err)
		}
		st.derive()
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (st *FallbackStat) derive() {
	if st.Total > 0 {
		st.FallbackRate = float64(st.Fallbacks) / float64(st.Total)
	}
	primary := st.Total - st.Fallbacks
	primaryCost := st.EstimatedCostUSD - st.FallbackCostUSD
	if primary > 0 && st.Fallbacks > 0 && primaryCost > 0 {
		st.CostMultiplier = (st.FallbackCostUSD / float64(st.Fallbacks)) / (primaryCost / float64(primary))
	}
}

// statsCacheKey buckets since to the minute so repeated dashboard polls share
// one cached report.
func statsCacheKey(since time.Time) string {
	return fmt.Sprintf("%s%d", statsCachePrefix, since.UTC().Truncate(time.Minute).Unix())
}
