package store

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// fakeDB records Exec calls and fails Query.
type fakeDB struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestSave_Upserts(t *testing.T) {
	db := &fakeDB{}
	s := NewPredictionStore(db, nil)

	err := s.Save(context.Background(), types.Prediction{MatchID: "m1", HomeScore: 2, AwayScore: 1},
		Meta{BatchID: "b1", ModelID: "deepseek-r1", UsedFallback: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.sql[0], "ON CONFLICT (match_id, model_id) DO UPDATE") {
		t.Errorf("expected upsert, got %s", db.sql[0])
	}
	args := db.args[0]
	if args[1] != "m1" || args[2] != "deepseek-r1" || args[3] != 2 || args[5] != true {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestSave_WrapsError(t *testing.T) {
	dbErr := errors.New("connection reset")
	s := NewPredictionStore(&fakeDB{err: dbErr}, nil)

	err := s.Save(context.Background(), types.Prediction{MatchID: "m1"}, Meta{ModelID: "qwen"})
	if !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped db error, got %v", err)
	}
}

func TestLogAttempt(t *testing.T) {
	db := &fakeDB{}
	s := NewPredictionStore(db, nil)

	a := types.Attempt{
		BatchID: "b1", MatchID: "m1", ModelID: "qwen", ErrorKind: "parse_failure",
		Err: errors.New("x"), Duration: 1500 * time.Millisecond,
	}
	if err := s.LogAttempt(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := db.args[0]
	if args[5] != false || args[6] != "parse_failure" || args[10] != int64(1500) {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestFallbackStat_Derive(t *testing.T) {
	st := FallbackStat{Total: 10, Fallbacks: 2, EstimatedCostUSD: 1.2, FallbackCostUSD: 0.4}
	st.derive()

	if st.FallbackRate != 0.2 {
		t.Errorf("FallbackRate = %v, want 0.2", st.FallbackRate)
	}
	// fallback 0.2/attempt vs primary 0.1/attempt
	if math.Abs(st.CostMultiplier-2) > 1e-9 {
		t.Errorf("CostMultiplier = %v, want 2", st.CostMultiplier)
	}

	none := FallbackStat{Total: 3, EstimatedCostUSD: 0.3}
	none.derive()
	if none.CostMultiplier != 0 || none.FallbackRate != 0 {
		t.Errorf("expected zero derived figures, got %+v", none)
	}
}

func TestStatsCacheKey(t *testing.T) {
	a := statsCacheKey(time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC))
	b := statsCacheKey(time.Date(2026, 1, 1, 10, 0, 55, 0, time.UTC))
	if a != b {
		t.Errorf("same minute should share a key: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, statsCachePrefix) {
		t.Errorf("unexpected key %s", a)
	}
}
