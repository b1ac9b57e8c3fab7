package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

type modelState struct {
	mu  sync.Mutex
	rec Record
}

// MemoryStore keeps health records in process memory. It backs tests and
// single-replica development runs.
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]*modelState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{models: make(map[string]*modelState)}
}

// state returns (or lazily creates) the entry for a model.
func (s *MemoryStore) state(modelID string) *modelState {
	s.mu.RLock()
	st, ok := s.models[modelID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if st, ok := s.models[modelID]; ok {
		return st
	}
	st = &modelState{rec: Record{ModelID: modelID}}
	s.models[modelID] = st
	return st
}

func (s *MemoryStore) lookup(modelID string) (*modelState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.models[modelID]
	return st, ok
}

func (s *MemoryStore) Register(_ context.Context, modelID string) error {
	s.state(modelID)
	return nil
}

func (s *MemoryStore) RecordSuccess(_ context.Context, modelID string, at time.Time) (Record, error) {
	st := s.state(modelID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.rec.ConsecutiveFailures = 0
	st.rec.AutoDisabled = false
	st.rec.DisabledAt = time.Time{}
	st.rec.LastSuccessAt = at
	return st.rec, nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, modelID string, f Failure) (FailureResult, error) {
	st := s.state(modelID)
	st.mu.Lock()
	defer st.mu.Unlock()

	wasDisabled := st.rec.AutoDisabled
	if f.Counted {
		st.rec.ConsecutiveFailures++
		if st.rec.ConsecutiveFailures >= f.Threshold {
			st.rec.AutoDisabled = true
		}
		if st.rec.AutoDisabled {
			st.rec.DisabledAt = f.At
		}
	}
	st.rec.LastFailureAt = f.At
	st.rec.LastFailureReason = f.Reason
	st.rec.LastErrorKind = string(f.Kind)

	return FailureResult{Record: st.rec, Disabled: !wasDisabled && st.rec.AutoDisabled}, nil
}

func (s *MemoryStore) Reenable(_ context.Context, modelID string) (Record, error) {
	st, ok := s.lookup(modelID)
	if !ok {
		return Record{}, ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	st.rec.ConsecutiveFailures = 0
	st.rec.AutoDisabled = false
	st.rec.DisabledAt = time.Time{}
	return st.rec, nil
}

func (s *MemoryStore) Get(_ context.Context, modelID string) (Record, error) {
	st, ok := s.lookup(modelID)
	if !ok {
		return Record{}, ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.rec, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	states := make([]*modelState, 0, len(s.models))
	for _, st := range s.models {
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]Record, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.rec)
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out, nil
}
