package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskpilot/taskpilot/internal/logging"
	"github.com/taskpilot/taskpilot/internal/orchestrator"
	"github.com/taskpilot/taskpilot/internal/recovery"
	"github.com/taskpilot/taskpilot/internal/types"
)

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"env=prod", "region=us-east-1", "empty="})
	if err != nil {
		t.Fatalf("parseVars: %v", err)
	}
	if vars["env"] != "prod" || vars["region"] != "us-east-1" || vars["empty"] != "" {
		t.Errorf("unexpected vars: %v", vars)
	}

	if _, err := parseVars([]string{"noequals"}); err == nil {
		t.Error("expected error for malformed variable")
	}
}

func TestLoadWorkflowFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	raw := `id: backup
name: Backup
steps:
  - kind: command
    command:
      script: echo backup
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	wf, err := loadWorkflowFile(path)
	if err != nil {
		t.Fatalf("loadWorkflowFile: %v", err)
	}
	if wf.ID != "backup" || len(wf.Steps) != 1 {
		t.Errorf("unexpected workflow: %+v", wf)
	}
	if err := wf.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadWorkflowFileMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	if err := os.WriteFile(path, []byte("name: NoID\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadWorkflowFile(path); err == nil {
		t.Error("expected error for workflow without id")
	}
}

func TestLoadWorkflowFileRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	raw := "id: backup\nname: Backup\nstepz:\n  - kind: command\n    command:\n      script: echo hi\n"
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadWorkflowFile(path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestBuildStackSurfacesStoreError(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the .taskpilot directory belongs makes workflow
	// store setup fail; the error must come back, not a panic.
	if err := os.WriteFile(filepath.Join(dir, ".taskpilot"), []byte("not a directory"), 0644); err != nil {
		t.Fatal(err)
	}

	oldWorkDir := workDir
	workDir = dir
	defer func() { workDir = oldWorkDir }()

	if _, err := buildStack(false); err == nil {
		t.Fatal("expected error when the workflow store cannot be created")
	}
}

// gatedRunner blocks each command until released, so tests control where a
// run is when a pause request arrives.
type gatedRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *gatedRunner) Execute(ctx context.Context, cmd *types.Command) (types.StepResult, error) {
	r.started <- struct{}{}
	<-r.release
	return types.NewStepResult(true, cmd.Script, "", 0, 0), nil
}

func TestPauseWithRetryBeforeRunStarts(t *testing.T) {
	runner := &gatedRunner{started: make(chan struct{}, 2), release: make(chan struct{}, 1)}
	logger := logging.NewForTest()
	orch := orchestrator.New(runner, recovery.New(runner, logger, 0),
		orchestrator.NewInmemWorkflowStore(), orchestrator.NewInmemStateStore(), logger)

	wf := types.NewWorkflow("wf", "WF", []types.WorkflowStep{
		types.CommandStep(types.Command{Script: "one"}),
		types.CommandStep(types.Command{Script: "two"}),
	})
	if err := orch.StoreWorkflow(wf); err != nil {
		t.Fatal(err)
	}
	exec, err := orch.NewExecution("wf", nil)
	if err != nil {
		t.Fatal(err)
	}

	// The pause request goes out before the run exists; the retry loop has
	// to land it once the run registers.
	pauseErr := make(chan error, 1)
	go func() { pauseErr <- pauseWithRetry(orch, exec.ID) }()
	time.Sleep(50 * time.Millisecond)

	resultCh := make(chan types.ExecutionResult, 1)
	go func() { resultCh <- orch.Run(context.Background(), exec) }()

	<-runner.started
	// Step one is in flight; give the retrying pause request time to
	// register before letting the step finish.
	time.Sleep(200 * time.Millisecond)
	runner.release <- struct{}{}

	result := <-resultCh
	if err := <-pauseErr; err != nil {
		t.Fatalf("pauseWithRetry: %v", err)
	}
	if result.Status != types.ExecutionPartial {
		t.Fatalf("expected partial result after pause, got %s", result.Status)
	}
	if len(result.Results) != 1 || result.Results[0].Stdout != "one" {
		t.Errorf("unexpected results: %+v", result.Results)
	}
}

func TestIndent(t *testing.T) {
	got := indent("a\nb", "  ")
	if got != "  a\n  b" {
		t.Errorf("indent: %q", got)
	}
}
