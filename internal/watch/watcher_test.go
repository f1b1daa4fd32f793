package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) onChanged(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, path)
}

func (r *recorder) onRemoved(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recorder) changedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changed)
}

func (r *recorder) removedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.removed)
}

func startWatcher(t *testing.T, dir string) (*Watcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	w, err := New(dir, 20*time.Millisecond, rec.onChanged, rec.onRemoved)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { require.NoError(t, w.Stop()) })
	return w, rec
}

func TestWatcher_ReportsApexSourceChanges(t *testing.T) {
	dir := t.TempDir()
	_, rec := startWatcher(t, dir)

	path := filepath.Join(dir, "Foo.cls")
	require.NoError(t, os.WriteFile(path, []byte("public class Foo {}"), 0644))

	require.Eventually(t, func() bool { return rec.changedCount() >= 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcher_ReportsRemovals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Gone.trigger")
	require.NoError(t, os.WriteFile(path, []byte("trigger Gone on Account (before insert) {}"), 0644))

	_, rec := startWatcher(t, dir)
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool { return rec.removedCount() >= 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	_, rec := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rec.changedCount())
	assert.Zero(t, rec.removedCount())
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	_, rec := startWatcher(t, dir)

	path := filepath.Join(dir, "Busy.cls")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("public class Busy {}"), 0644))
	}

	require.Eventually(t, func() bool { return rec.changedCount() >= 1 },
		2*time.Second, 10*time.Millisecond)
	// The burst collapses into a single notification for the file.
	assert.LessOrEqual(t, rec.changedCount(), 2)
}
