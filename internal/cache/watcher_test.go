package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func startWatcher(t *testing.T, dir string) *changeRecorder {
	t.Helper()
	rec := &changeRecorder{}
	w := NewWatcher(dir, rec.record)
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return rec
}

func TestWatcher_ReportsWritesAndRemovals(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, dir)
	s := NewStore(dir)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testID, sampleToken()))
	assert.Eventually(t, func() bool {
		c := rec.snapshot()
		return len(c) == 1 && c[0] == Change{ID: testID, Kind: RecordWritten}
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Delete(ctx, testID))
	assert.Eventually(t, func() bool {
		c := rec.snapshot()
		return len(c) == 2 && c[1] == Change{ID: testID, Kind: RecordRemoved}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-record.json"), []byte("x"), 0600))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "created"), nil)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()
}

func TestChangeKind_String(t *testing.T) {
	assert.Equal(t, "written", RecordWritten.String())
	assert.Equal(t, "removed", RecordRemoved.String())
}
