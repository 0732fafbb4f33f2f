package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RiskApprove/internal/domain"
	"RiskApprove/internal/repository/vectorstore"
	"RiskApprove/internal/services/documents"
	"RiskApprove/pkg/cache"
	applogger "RiskApprove/pkg/logger"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regulationFixture() []*schema.Document {
	return []*schema.Document{
		{ID: "conc", Content: "No single stock may exceed a concentration of 25 percent.", MetaData: map[string]any{"source": "conc.txt"}},
		{ID: "risk", Content: "High risk assets have a maximum limit for low risk clients.", MetaData: map[string]any{"source": "risk.txt"}},
	}
}

type indexFixture struct {
	index   *RegulationIndex
	loader  *fakeLoader
	store   *vectorstore.Memory
	metrics *fakeMetrics
}

func newIndexFixture(t *testing.T, dir string, opts ...IndexOption) indexFixture {
	t.Helper()
	store, err := vectorstore.NewMemory(keywordEmbedder{keywords: []string{"concentration", "risk"}}, dir)
	require.NoError(t, err)
	splitter, err := documents.NewSplitter(documents.WithChunkSize(30), documents.WithOverlap(0))
	require.NoError(t, err)
	loader := &fakeLoader{docs: regulationFixture()}
	m := newFakeMetrics()
	ix := NewRegulationIndex(loader, splitter, store, "./regulations", m, applogger.Nop(), opts...)
	return indexFixture{index: ix, loader: loader, store: store, metrics: m}
}

func TestRegulationIndex_OpenBuildsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, "")

	assert.False(t, f.index.Ready())
	_, err := f.index.Search(ctx, "concentration", 3)
	require.ErrorIs(t, err, domain.ErrIndexNotReady)

	require.NoError(t, f.index.Open(ctx))
	assert.True(t, f.index.Ready())
	assert.Greater(t, f.index.Chunks(), 2, "documents are split into several chunks")
	assert.Equal(t, 1, f.loader.Calls())
	assert.Equal(t, f.index.Chunks(), f.metrics.chunks)
	assert.Equal(t, 1, f.metrics.rebuilds[true])

	docs, err := f.index.Search(ctx, "concentration", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "conc.txt", docs[0].MetaData["source"])
	assert.Contains(t, docs[0].Content, "concentration")
}

func TestRegulationIndex_OpenReusesPersistedIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newIndexFixture(t, dir)
	require.NoError(t, first.index.Open(ctx))
	chunks := first.index.Chunks()

	second := newIndexFixture(t, dir)
	require.NoError(t, second.index.Open(ctx))
	assert.True(t, second.index.Ready())
	assert.Equal(t, chunks, second.index.Chunks())
	assert.Zero(t, second.loader.Calls(), "persisted index must not be rebuilt")
}

func TestRegulationIndex_EmptyDirectoryIndexesPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, "")
	ix := NewRegulationIndex(documents.NewDirectoryLoader(applogger.Nop()), mustSplitter(t), f.store, t.TempDir(), f.metrics, applogger.Nop())

	n, err := ix.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, ix.Ready())
	assert.True(t, ix.Placeholder())

	f.loader.docs = regulationFixture()
	ix.loader = f.loader
	_, err = ix.Rebuild(ctx)
	require.NoError(t, err)
	assert.False(t, ix.Placeholder())
}

func mustSplitter(t *testing.T) *documents.Splitter {
	t.Helper()
	s, err := documents.NewSplitter()
	require.NoError(t, err)
	return s
}

func TestRegulationIndex_RebuildReplacesContent(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, "")
	require.NoError(t, f.index.Open(ctx))

	f.loader.docs = []*schema.Document{{ID: "new", Content: "risk", MetaData: map[string]any{"source": "new.txt"}}}
	n, err := f.index.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.index.Chunks())

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegulationIndex_LoadFailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, "")
	require.NoError(t, f.index.Open(ctx))
	before := f.index.Chunks()

	f.loader.err = errors.New("disk gone")
	_, err := f.index.Rebuild(ctx)
	require.Error(t, err)
	assert.True(t, f.index.Ready())
	assert.Equal(t, before, f.index.Chunks())
	assert.Equal(t, 1, f.metrics.rebuilds[false])
}

func TestRegulationIndex_RebuildLock(t *testing.T) {
	ctx := context.Background()
	locks := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = locks.Close() })

	f := newIndexFixture(t, "", WithRebuildLock(locks, "regulations:rebuild"))

	ok, err := locks.TryLock(ctx, "regulations:rebuild", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.index.Rebuild(ctx)
	require.ErrorIs(t, err, domain.ErrRebuildInProgress)
	assert.Zero(t, f.loader.Calls())

	require.NoError(t, locks.Unlock(ctx, "regulations:rebuild"))
	_, err = f.index.Rebuild(ctx)
	require.NoError(t, err)

	ok, err = locks.TryLock(ctx, "regulations:rebuild", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock is released after a rebuild")
}

func TestRegulationIndex_ConcurrentSearchDuringRebuild(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, "")
	require.NoError(t, f.index.Open(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				docs, err := f.index.Search(ctx, "risk", 2)
				assert.NoError(t, err)
				assert.NotEmpty(t, docs)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := f.index.Rebuild(ctx)
		require.NoError(t, err)
	}
	wg.Wait()
}
