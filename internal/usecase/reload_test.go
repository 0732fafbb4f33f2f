package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"RiskApprove/internal/domain"
	applogger "RiskApprove/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRebuilder struct {
	calls atomic.Int32
	err   error
}

func (c *countingRebuilder) Rebuild(context.Context) (int, error) {
	c.calls.Add(1)
	return 3, c.err
}

func TestNewReloadScheduler_InvalidSpec(t *testing.T) {
	_, err := NewReloadScheduler("not a cron", &countingRebuilder{}, applogger.Nop())
	require.Error(t, err)
}

func TestReloadScheduler_StartStop(t *testing.T) {
	r := &countingRebuilder{}
	s, err := NewReloadScheduler("@every 1h", r, applogger.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.run()
	assert.Equal(t, int32(1), r.calls.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestRunRebuild_ToleratesInProgress(t *testing.T) {
	r := &countingRebuilder{err: domain.ErrRebuildInProgress}
	runRebuild(context.Background(), r, applogger.Nop(), "test")
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestReloadWatcher_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	r := &countingRebuilder{}
	w := NewReloadWatcher(dir, 100*time.Millisecond, r, applogger.Nop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.txt"), []byte{byte('a' + i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.csv"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestReloadWatcher_WatchesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sec", "2024")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	r := &countingRebuilder{}
	w := NewReloadWatcher(dir, 50*time.Millisecond, r, applogger.Nop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	require.NoError(t, os.WriteFile(filepath.Join(nested, "rule.md"), []byte("limit"), 0o644))
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	added := filepath.Join(dir, "finra")
	require.NoError(t, os.Mkdir(added, 0o755))
	require.Eventually(t, func() bool { return r.calls.Load() == 2 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(added, "notice.txt"), []byte("maximum"), 0o644))
	require.Eventually(t, func() bool { return r.calls.Load() == 3 }, 3*time.Second, 20*time.Millisecond)
}

func TestReloadWatcher_MissingDir(t *testing.T) {
	w := NewReloadWatcher(filepath.Join(t.TempDir(), "missing"), 0, &countingRebuilder{}, applogger.Nop())
	require.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		evt  fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/r/a.pdf", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/r/a.md", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/r/a.txt", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/r/a.txt", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/r/.a.txt.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/r/a.csv", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relevant(tt.evt), tt.evt.String())
	}
}
