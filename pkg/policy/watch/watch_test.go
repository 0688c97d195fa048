package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis-hq/aegis/pkg/policy/ast"
	"aegis-hq/aegis/pkg/policy/index"
)

func validPolicyYAML(agentID string) string {
	return `
version: 1
agents:
  - id: ` + agentID + `
    permissions:
      - tool: files
        actions: [read]
`
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte(validPolicyYAML("bot-1")), 0o644))

	idx := index.New(nil)
	w, err := New(dir, 20*time.Millisecond, idx, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Start(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte(validPolicyYAML("bot-2")), 0o644))

	require.Eventually(t, func() bool {
		_, ok := idx.Current().Lookup("bot-2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	<-done
}

func TestWatcher_BadReloadKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte(validPolicyYAML("bot-1")), 0o644))

	idx := index.New(nil)
	var reloadErrs int
	w, err := New(dir, time.Second, idx, nil, func(error) { reloadErrs++ })
	require.NoError(t, err)

	w.reload()
	_, ok := idx.Current().Lookup("bot-1")
	require.True(t, ok)

	// Point at a directory that no longer exists: Load() fails at the
	// directory-read step, the one error class reload() treats as fatal
	// to this attempt, retaining the previous snapshot.
	w.dir = filepath.Join(dir, "does-not-exist")
	w.reload()

	assert.Equal(t, 1, reloadErrs)
	_, ok = idx.Current().Lookup("bot-1")
	assert.True(t, ok, "previous snapshot must survive a failed reload")
}

func TestWatcher_WarningsAndSetInitialWarnings(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(nil)
	w, err := New(dir, time.Second, idx, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, w.Warnings())

	initial := []ast.LoadWarning{{SourcePath: "a.yaml", Message: "missing required field: version"}}
	w.SetInitialWarnings(initial)
	assert.Equal(t, initial, w.Warnings())
}

func TestWatcher_ShouldProcess(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(nil)
	w, err := New(dir, time.Second, idx, nil, nil)
	require.NoError(t, err)

	assert.True(t, w.shouldProcess(fsnotify.Event{Name: filepath.Join(dir, "a.yaml"), Op: fsnotify.Write}))
	assert.False(t, w.shouldProcess(fsnotify.Event{Name: filepath.Join(dir, ".hidden.yaml"), Op: fsnotify.Write}))
	assert.False(t, w.shouldProcess(fsnotify.Event{Name: filepath.Join(dir, "readme.txt"), Op: fsnotify.Write}))
}
