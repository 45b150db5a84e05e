package orchestrator

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/taskpilot/taskpilot/internal/types"
)

// StateStore persists paused execution snapshots keyed by execution id.
// Snapshots are encoded as JSON so a resumed process, possibly a different
// binary invocation entirely, can pick up exactly where the paused one
// stopped.
type StateStore interface {
	// Put persists a snapshot, replacing any previous snapshot for the
	// same execution.
	Put(state *types.WorkflowState) error

	// Get retrieves a snapshot by execution id. Returns
	// ErrExecutionNotFound if no snapshot exists.
	Get(executionID string) (*types.WorkflowState, error)

	// List returns all persisted snapshots.
	List() ([]*types.WorkflowState, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an
	// error; resume and stale-cleanup may race.
	Delete(executionID string) error
}

func encodeState(state *types.WorkflowState) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return raw, nil
}

func decodeState(raw []byte) (*types.WorkflowState, error) {
	var state types.WorkflowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &state, nil
}

// InmemStateStore keeps snapshots in memory. It still round-trips through
// the JSON codec so in-memory and on-disk stores behave identically.
type InmemStateStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewInmemStateStore creates an empty store.
func NewInmemStateStore() *InmemStateStore {
	return &InmemStateStore{states: make(map[string][]byte)}
}

func (s *InmemStateStore) Put(state *types.WorkflowState) error {
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Execution.ID] = raw
	return nil
}

func (s *InmemStateStore) Get(executionID string) (*types.WorkflowState, error) {
	s.mu.RLock()
	raw, ok := s.states[executionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return decodeState(raw)
}

func (s *InmemStateStore) List() ([]*types.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]*types.WorkflowState, 0, len(s.states))
	for _, raw := range s.states {
		state, err := decodeState(raw)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *InmemStateStore) Delete(executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, executionID)
	return nil
}
