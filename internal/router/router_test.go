package router

import (
	"context"
	"errors"
	"sync"

	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// fakeProvider implements Provider for testing.
type fakeProvider struct {
	id      string
	backend string
	content string
	err     error

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) ID() string                    { return f.id }
func (f *fakeProvider) DisplayName() string           { return f.id }
func (f *fakeProvider) Backend() string               { return f.backend }
func (f *fakeProvider) SupportsReasoningOutput() bool { return false }
func (f *fakeProvider) EstimateCost(in, out int) float64 {
	return float64(in+out) / 1_000_000
}

func (f *fakeProvider) PredictBatch(_ context.Context, _, _ string) (*types.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &types.Completion{Model: f.id, Content: f.content}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ok(id, backend string) *fakeProvider {
	return &fakeProvider{id: id, backend: backend, content: `{"match_id":"m1","home_score":1,"away_score":0}`}
}

func failing(id, backend string, err error) *fakeProvider {
	return &fakeProvider{id: id, backend: backend, err: err}
}

var errBoom = errors.New("boom")

func allCredentials(Provider) bool { return true }
