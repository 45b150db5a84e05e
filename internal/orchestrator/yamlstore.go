package orchestrator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taskpilot/taskpilot/internal/types"
)

// YAMLWorkflowStore persists workflow definitions as YAML files, one per
// workflow, with atomic write-then-rename saves.
type YAMLWorkflowStore struct {
	dir string
}

// NewYAMLWorkflowStore creates a store rooted at dir, recovering any .tmp
// files a crashed write left behind.
func NewYAMLWorkflowStore(dir string) (*YAMLWorkflowStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating workflow dir: %w", err)
	}
	if err := recoverInterruptedWrites(dir); err != nil {
		return nil, fmt.Errorf("recovering interrupted writes: %w", err)
	}
	return &YAMLWorkflowStore{dir: dir}, nil
}

// recoverInterruptedWrites handles .tmp files left from crashed writes.
func recoverInterruptedWrites(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".yaml.tmp") {
			continue
		}
		tmpPath := filepath.Join(dir, entry.Name())
		mainPath := strings.TrimSuffix(tmpPath, ".tmp")
		if _, err := os.Stat(mainPath); err == nil {
			os.Remove(tmpPath)
		} else {
			os.Rename(tmpPath, mainPath)
		}
	}
	return nil
}

func (s *YAMLWorkflowStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *YAMLWorkflowStore) Get(id string) (*types.Workflow, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &WorkflowNotFoundError{ID: id}
		}
		return nil, err
	}

	wf, err := DecodeWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("parsing workflow %s: %w", id, err)
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", id, err)
	}
	return wf, nil
}

// DecodeWorkflow parses workflow YAML strictly: unknown fields are errors,
// so a typoed key fails loudly instead of silently dropping steps.
func DecodeWorkflow(data []byte) (*types.Workflow, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var wf types.Workflow
	if err := dec.Decode(&wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Save persists a workflow atomically (write-then-rename).
func (s *YAMLWorkflowStore) Save(wf *types.Workflow) error {
	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshaling workflow: %w", err)
	}

	mainPath := s.path(wf.ID)
	tmpPath := mainPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, mainPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *YAMLWorkflowStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return &WorkflowNotFoundError{ID: id}
		}
		return err
	}
	return nil
}

func (s *YAMLWorkflowStore) List() ([]*types.Workflow, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var workflows []*types.Workflow
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}
		wf, err := s.Get(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}
