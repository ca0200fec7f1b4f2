package pipeline

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore is an in-memory StateStore guarded by a mutex. It
// backs unit tests and single-process local runs; production uses the
// Mongo-backed store in the repositories package.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]*ProcessingState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*ProcessingState)}
}

func (m *MemoryStateStore) Create(ctx context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[recordID]; ok {
		return nil
	}
	m.states[recordID] = &ProcessingState{
		RecordID:  recordID,
		State:     StatePending,
		Retries:   make(map[Stage]int),
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *MemoryStateStore) Get(ctx context.Context, recordID string) (*ProcessingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[recordID]
	if !ok {
		return nil, ErrStateNotFound
	}
	cp := *st
	cp.Retries = make(map[Stage]int, len(st.Retries))
	for k, v := range st.Retries {
		cp.Retries[k] = v
	}
	return &cp, nil
}

func (m *MemoryStateStore) CompareAndSwap(ctx context.Context, recordID string, from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[recordID]
	if !ok {
		return ErrStateNotFound
	}
	if st.State != from {
		return ErrStaleState
	}
	st.State = to
	st.UpdatedAt = time.Now()
	if to == StateComplete {
		now := time.Now()
		st.CompletedAt = &now
	} else {
		st.CompletedAt = nil
	}
	return nil
}

func (m *MemoryStateStore) SetFailure(ctx context.Context, recordID string, from, to State, stage Stage, retries int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[recordID]
	if !ok {
		return ErrStateNotFound
	}
	if st.State != from {
		return ErrStaleState
	}
	st.State = to
	if stage != "" {
		if st.Retries == nil {
			st.Retries = make(map[Stage]int)
		}
		st.Retries[stage] = retries
	}
	st.LastError = lastError
	st.UpdatedAt = time.Now()
	st.CompletedAt = nil
	return nil
}

func (m *MemoryStateStore) Reclaim(ctx context.Context, recordID string, inProgress State, updatedBefore time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[recordID]
	if !ok {
		return ErrStateNotFound
	}
	if st.State != inProgress || st.UpdatedAt.After(updatedBefore) {
		return ErrStaleState
	}
	st.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStateStore) Counts(ctx context.Context) (map[State]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[State]int64)
	for _, st := range m.states {
		counts[st.State]++
	}
	return counts, nil
}

// CompletedSince returns IDs of records completed strictly after since,
// mirroring the Mongo store's read used by the feature store.
func (m *MemoryStateStore) CompletedSince(ctx context.Context, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, st := range m.states {
		if st.State == StateComplete && st.CompletedAt != nil && st.CompletedAt.After(since) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
