package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/services/documents"
	applogger "RiskApprove/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// Rebuilder rebuilds the regulation index.
type Rebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

func runRebuild(ctx context.Context, r Rebuilder, l *applogger.Logger, trigger string) {
	n, err := r.Rebuild(ctx)
	switch {
	case errors.Is(err, domain.ErrRebuildInProgress):
		l.Info("skipping reload, rebuild already running", applogger.String("trigger", trigger))
	case err != nil:
		l.Error("scheduled reload failed", applogger.String("trigger", trigger), applogger.Error(err))
	default:
		l.Info("regulations reloaded", applogger.String("trigger", trigger), applogger.Int("chunks", n))
	}
}

// ReloadScheduler rebuilds the index on a cron schedule.
type ReloadScheduler struct {
	cron    *cron.Cron
	spec    string
	target  Rebuilder
	logger  *applogger.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewReloadScheduler parses spec, a standard five-field expression or a
// descriptor such as "@daily".
func NewReloadScheduler(spec string, target Rebuilder, l *applogger.Logger) (*ReloadScheduler, error) {
	s := &ReloadScheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:    spec,
		target:  target,
		logger:  l.With(applogger.String("component", "reload-scheduler")),
		timeout: 30 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("register reload cron %q: %w", spec, err)
	}
	return s, nil
}

func (s *ReloadScheduler) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	runRebuild(ctx, s.target, s.logger, "cron")
}

func (s *ReloadScheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron.Start()
	s.logger.Info("reload scheduler started", applogger.String("spec", s.spec))
	return nil
}

// Stop waits for a running rebuild or for ctx to expire.
func (s *ReloadScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		if s.cancel != nil {
			s.cancel()
		}
		return ctx.Err()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("reload scheduler stopped")
	return nil
}

// ReloadWatcher rebuilds the index after regulation files change. Bursts of
// events within the debounce window trigger one rebuild.
type ReloadWatcher struct {
	dir      string
	debounce time.Duration
	target   Rebuilder
	logger   *applogger.Logger

	watcher *fsnotify.Watcher
	dirs    map[string]struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer
}

func NewReloadWatcher(dir string, debounce time.Duration, target Rebuilder, l *applogger.Logger) *ReloadWatcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &ReloadWatcher{
		dir:      dir,
		debounce: debounce,
		target:   target,
		logger:   l.With(applogger.String("component", "reload-watcher")),
	}
}

func (w *ReloadWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = watcher
	w.dirs = make(map[string]struct{})
	if err := w.addTree(w.dir); err != nil {
		watcher.Close()
		w.watcher = nil
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(loopCtx)
	w.logger.Info("watching regulations directory", applogger.String("dir", w.dir))
	return nil
}

func (w *ReloadWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevantTree(evt) && !relevant(evt) {
				continue
			}
			w.logger.Debug("regulation file changed",
				applogger.String("file", evt.Name),
				applogger.String("op", evt.Op.String()),
			)
			w.schedule(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", applogger.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *ReloadWatcher) schedule(ctx context.Context) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		runRebuild(ctx, w.target, w.logger, "watch")
	})
}

func (w *ReloadWatcher) Stop(_ context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// addTree watches root and every directory below it, matching the
// recursive walk of the loader.
func (w *ReloadWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

// relevantTree tracks directories created or removed under the watched tree.
// A new directory is watched and may already hold files, so both count as a change.
func (w *ReloadWatcher) relevantTree(evt fsnotify.Event) bool {
	if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
		if _, ok := w.dirs[evt.Name]; ok {
			delete(w.dirs, evt.Name)
			return true
		}
		return false
	}
	if !evt.Has(fsnotify.Create) {
		return false
	}
	info, err := os.Stat(evt.Name)
	if err != nil || !info.IsDir() {
		return false
	}
	if err := w.addTree(evt.Name); err != nil {
		w.logger.Warn("failed to watch new directory", applogger.String("dir", evt.Name), applogger.Error(err))
	}
	return true
}

func relevant(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	if base == "" || base[0] == '.' {
		return false
	}
	return documents.Supported(evt.Name)
}
