package orchestrator

import (
	"sync"

	"github.com/taskpilot/taskpilot/internal/types"
)

// WorkflowStore resolves workflow ids for sub-workflow expansion and holds
// workflows registered via StoreWorkflow. Implementations must be safe for
// concurrent use; parallel branches resolve sub-workflows concurrently.
type WorkflowStore interface {
	// Get retrieves a workflow by ID.
	Get(id string) (*types.Workflow, error)

	// Save persists a workflow, replacing any previous version.
	Save(wf *types.Workflow) error

	// Delete removes a workflow.
	Delete(id string) error

	// List returns all stored workflows.
	List() ([]*types.Workflow, error)
}

// InmemWorkflowStore is a mutex-guarded in-memory WorkflowStore. Stored
// workflows are cloned on the way in and out, so callers can never mutate a
// stored definition in place.
type InmemWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*types.Workflow
}

// NewInmemWorkflowStore creates an empty store.
func NewInmemWorkflowStore() *InmemWorkflowStore {
	return &InmemWorkflowStore{workflows: make(map[string]*types.Workflow)}
}

func (s *InmemWorkflowStore) Get(id string) (*types.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, &WorkflowNotFoundError{ID: id}
	}
	return wf.Clone(), nil
}

func (s *InmemWorkflowStore) Save(wf *types.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf.Clone()
	return nil
}

func (s *InmemWorkflowStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return &WorkflowNotFoundError{ID: id}
	}
	delete(s.workflows, id)
	return nil
}

func (s *InmemWorkflowStore) List() ([]*types.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf.Clone())
	}
	return out, nil
}
