package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RiskApprove/internal/domain"
	domrepo "RiskApprove/internal/domain/repository"
	"RiskApprove/internal/services/documents"
	"RiskApprove/pkg/cache"
	applogger "RiskApprove/pkg/logger"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const rebuildLockTTL = 10 * time.Minute

// IndexOption configures RegulationIndex.
type IndexOption func(*RegulationIndex)

// WithRebuildLock coordinates rebuilds across processes sharing one vector
// store through a cache lock.
func WithRebuildLock(c cache.Service, key string) IndexOption {
	return func(ix *RegulationIndex) {
		ix.lock = c
		ix.lockKey = key
	}
}

// RegulationIndex is the process-wide handle on the regulation vector index.
// Searches share swapMu with the write phase of a rebuild, so they never see
// a half-written index.
type RegulationIndex struct {
	loader   document.Loader
	splitter document.Transformer
	store    domrepo.VectorStore
	dir      string
	metrics  domrepo.Metrics
	logger   *applogger.Logger

	lock    cache.Service
	lockKey string

	mu          sync.RWMutex
	ready       bool
	chunks      int
	placeholder bool

	rebuildMu sync.Mutex
	swapMu    sync.RWMutex
}

func NewRegulationIndex(
	loader document.Loader,
	splitter document.Transformer,
	store domrepo.VectorStore,
	dir string,
	m domrepo.Metrics,
	l *applogger.Logger,
	opts ...IndexOption,
) *RegulationIndex {
	ix := &RegulationIndex{
		loader:   loader,
		splitter: splitter,
		store:    store,
		dir:      dir,
		metrics:  m,
		logger:   l.With(applogger.String("component", "regulation-index")),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Open reuses a populated store and builds one otherwise.
func (ix *RegulationIndex) Open(ctx context.Context) error {
	n, err := ix.store.Count(ctx)
	if err != nil {
		ix.logger.Warn("could not inspect existing index, rebuilding", applogger.Error(err))
	}
	if err == nil && n > 0 {
		ix.setState(true, n)
		ix.logger.Info("reusing existing regulation index", applogger.Int("chunks", n))
		return nil
	}
	_, err = ix.Rebuild(ctx)
	return err
}

func (ix *RegulationIndex) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// Placeholder reports whether the last rebuild found no regulation text and
// indexed only the empty-directory placeholder.
func (ix *RegulationIndex) Placeholder() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.placeholder
}

func (ix *RegulationIndex) Chunks() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.chunks
}

// Rebuild reloads the directory and replaces the index wholesale. It returns
// the number of indexed chunks.
func (ix *RegulationIndex) Rebuild(ctx context.Context) (int, error) {
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()

	if ix.lock != nil {
		ok, err := ix.lock.TryLock(ctx, ix.lockKey, rebuildLockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire rebuild lock: %w", err)
		}
		if !ok {
			return 0, domain.ErrRebuildInProgress
		}
		defer func() {
			if err := ix.lock.Unlock(context.WithoutCancel(ctx), ix.lockKey); err != nil {
				ix.logger.Warn("release rebuild lock", applogger.Error(err))
			}
		}()
	}

	start := time.Now()
	n, err := ix.rebuild(ctx)
	ix.metrics.RecordIndexRebuild(err == nil, time.Since(start).Seconds())
	if err != nil {
		ix.logger.Error("regulation index rebuild failed", applogger.Error(err))
		return 0, err
	}
	ix.logger.Info("regulation index rebuilt",
		applogger.Int("chunks", n),
		applogger.Bool("placeholder", ix.Placeholder()),
		applogger.Duration("took", time.Since(start)),
	)
	return n, nil
}

func (ix *RegulationIndex) rebuild(ctx context.Context) (int, error) {
	docs, err := ix.loader.Load(ctx, document.Source{URI: ix.dir})
	if err != nil {
		return 0, fmt.Errorf("load regulations: %w", err)
	}
	onlyPlaceholder := len(docs) == 1 && documents.IsPlaceholder(docs[0])
	chunks, err := ix.splitter.Transform(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("split regulations: %w", err)
	}

	ix.swapMu.Lock()
	defer ix.swapMu.Unlock()

	if err := ix.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}
	if _, err := ix.store.Store(ctx, chunks); err != nil {
		ix.setState(false, 0)
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	ix.setState(true, len(chunks))
	ix.mu.Lock()
	ix.placeholder = onlyPlaceholder
	ix.mu.Unlock()
	return len(chunks), nil
}

// Search returns the topK chunks closest to query.
func (ix *RegulationIndex) Search(ctx context.Context, query string, topK int) ([]*schema.Document, error) {
	if !ix.Ready() {
		return nil, domain.ErrIndexNotReady
	}
	ix.swapMu.RLock()
	defer ix.swapMu.RUnlock()
	return ix.store.Retrieve(ctx, query, retriever.WithTopK(topK))
}

func (ix *RegulationIndex) setState(ready bool, chunks int) {
	ix.mu.Lock()
	ix.ready = ready
	ix.chunks = chunks
	ix.mu.Unlock()
	ix.metrics.SetIndexedChunks(chunks)
}
