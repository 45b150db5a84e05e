package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpilot/taskpilot/internal/types"
)

func newYAMLStore(t *testing.T) (*YAMLWorkflowStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewYAMLWorkflowStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestYAMLStoreRoundTrip(t *testing.T) {
	store, _ := newYAMLStore(t)
	onTrue := cmdStep("fast path")
	wf := types.NewWorkflow("deploy", "Deploy", []types.WorkflowStep{
		types.PromptStep("starting ${env}"),
		types.ParallelStep(cmdStep("build"), cmdStep("lint")),
		types.ConditionalStep(types.Condition{Expression: "${env} == \"prod\""}, &onTrue, nil),
		types.SubworkflowStep("verify"),
	})
	wf.Tags = []string{"deploy", "ci"}

	require.NoError(t, store.Save(wf))

	got, err := store.Get("deploy")
	require.NoError(t, err)
	assert.Equal(t, wf.Name, got.Name)
	assert.Equal(t, wf.Tags, got.Tags)
	require.Len(t, got.Steps, 4)
	assert.Equal(t, types.StepParallel, got.Steps[1].Kind)
	require.Len(t, got.Steps[1].Parallel, 2)
	assert.Equal(t, "build", got.Steps[1].Parallel[0].Command.Script)
	require.NotNil(t, got.Steps[2].Conditional.True)
	assert.Equal(t, "fast path", got.Steps[2].Conditional.True.Command.Script)
	assert.Equal(t, "verify", got.Steps[3].Subworkflow)
}

func TestYAMLStoreGetUnknown(t *testing.T) {
	store, _ := newYAMLStore(t)
	_, err := store.Get("missing")
	var nf *WorkflowNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
}

func TestYAMLStoreRejectsMalformed(t *testing.T) {
	store, dir := newYAMLStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("{not yaml"), 0644))
	_, err := store.Get("bad")
	require.Error(t, err)
}

func TestYAMLStoreRejectsUnknownFields(t *testing.T) {
	store, dir := newYAMLStore(t)
	// A typoed key must fail the decode, not be silently dropped.
	raw := "id: bad\nname: Bad\nstepz:\n  - kind: command\n    command:\n      script: echo hi\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(raw), 0644))
	_, err := store.Get("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stepz")
}

func TestYAMLStoreRejectsInvalidWorkflow(t *testing.T) {
	store, dir := newYAMLStore(t)
	// A prompt step without a message fails validation on load.
	raw := "id: bad\nname: Bad\nsteps:\n  - kind: prompt\n    prompt: {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(raw), 0644))
	_, err := store.Get("bad")
	require.Error(t, err)
}

func TestYAMLStoreDelete(t *testing.T) {
	store, _ := newYAMLStore(t)
	require.NoError(t, store.Save(types.NewWorkflow("wf", "WF", []types.WorkflowStep{cmdStep("x")})))
	require.NoError(t, store.Delete("wf"))

	var nf *WorkflowNotFoundError
	require.ErrorAs(t, store.Delete("wf"), &nf)
}

func TestYAMLStoreList(t *testing.T) {
	store, dir := newYAMLStore(t)
	require.NoError(t, store.Save(types.NewWorkflow("one", "One", []types.WorkflowStep{cmdStep("x")})))
	require.NoError(t, store.Save(types.NewWorkflow("two", "Two", []types.WorkflowStep{cmdStep("y")})))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))

	workflows, err := store.List()
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}

func TestYAMLStoreRecoversInterruptedWrite(t *testing.T) {
	dir := t.TempDir()
	store0, err := NewYAMLWorkflowStore(dir)
	require.NoError(t, err)
	wf := types.NewWorkflow("wf", "WF", []types.WorkflowStep{cmdStep("x")})
	require.NoError(t, store0.Save(wf))

	// Simulate a crash mid-save: a complete temp file with no main file.
	data, err := os.ReadFile(filepath.Join(dir, "wf.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "wf.yaml")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wf.yaml.tmp"), data, 0644))

	store, err := NewYAMLWorkflowStore(dir)
	require.NoError(t, err)
	got, err := store.Get("wf")
	require.NoError(t, err)
	assert.Equal(t, "WF", got.Name)

	// An orphan temp file alongside a valid main file is discarded.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wf.yaml.tmp"), []byte("stale"), 0644))
	_, err = NewYAMLWorkflowStore(dir)
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "wf.yaml.tmp"))
	assert.True(t, os.IsNotExist(statErr))
}
