package orchestrator

import (
	"path/filepath"
	"strings"

	"github.com/peterbourgon/diskv/v3"
	"github.com/taskpilot/taskpilot/internal/types"
)

const stateFileSuffix = ".json"

// DiskvStateStore persists snapshots on disk using the diskv key-value
// store, one JSON file per execution under <dir>/paused.
type DiskvStateStore struct {
	kv *diskv.Diskv
}

// NewDiskvStateStore creates a store rooted at dir, creating directories
// lazily on first write.
func NewDiskvStateStore(dir string) *DiskvStateStore {
	flatTransform := func(s string) []string { return []string{} }
	return &DiskvStateStore{kv: diskv.New(diskv.Options{
		BasePath:     filepath.Join(dir, "paused"),
		Transform:    flatTransform,
		CacheSizeMax: 1024 * 1024,
	})}
}

func stateKey(executionID string) string {
	return executionID + stateFileSuffix
}

func (s *DiskvStateStore) Put(state *types.WorkflowState) error {
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	return s.kv.Write(stateKey(state.Execution.ID), raw)
}

func (s *DiskvStateStore) Get(executionID string) (*types.WorkflowState, error) {
	if !s.kv.Has(stateKey(executionID)) {
		return nil, ErrExecutionNotFound
	}
	raw, err := s.kv.Read(stateKey(executionID))
	if err != nil {
		return nil, err
	}
	return decodeState(raw)
}

func (s *DiskvStateStore) List() ([]*types.WorkflowState, error) {
	var states []*types.WorkflowState
	for key := range s.kv.Keys(nil) {
		if !strings.HasSuffix(key, stateFileSuffix) {
			continue
		}
		raw, err := s.kv.Read(key)
		if err != nil {
			return nil, err
		}
		state, err := decodeState(raw)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *DiskvStateStore) Delete(executionID string) error {
	if !s.kv.Has(stateKey(executionID)) {
		return nil
	}
	return s.kv.Erase(stateKey(executionID))
}
