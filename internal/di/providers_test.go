package di

import (
	"context"
	"errors"
	"testing"

	internalrepo "RiskApprove/internal/repository"
	"RiskApprove/internal/repository/vectorstore"
	"RiskApprove/internal/usecase"
	"RiskApprove/pkg/cache"
	"RiskApprove/pkg/config"
	applogger "RiskApprove/pkg/logger"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constEmbedder struct{}

func (constEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordPrediction(string)                  {}
func (nopMetrics) RecordHistoryFetch(string, bool, float64) {}
func (nopMetrics) RecordComplianceCheck(bool)               {}
func (nopMetrics) RecordViolation(string)                   {}
func (nopMetrics) SetIndexedChunks(int)                     {}
func (nopMetrics) RecordIndexRebuild(bool, float64)         {}

type orderCloser struct {
	name  string
	order *[]string
	err   error
}

func (c orderCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestProvideRedisClient_NotNeeded(t *testing.T) {
	cfg := config.Default()
	client, err := ProvideRedisClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestProvideCache_FallsBackToMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = "redis"

	c := ProvideCache(cfg, nil)
	defer c.Close()
	_, ok := c.(*cache.MemoryCache)
	assert.True(t, ok)
}

func TestProvideDisabledStores(t *testing.T) {
	cfg := config.Default()

	events, err := ProvideEventPublisher(cfg)
	require.NoError(t, err)
	assert.IsType(t, internalrepo.NoopEvents{}, events)

	preds, err := ProvidePredictionStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, internalrepo.NoopPredictions{}, preds)

	audit, err := ProvideAuditStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, internalrepo.NoopAudit{}, audit)
}

func TestProvideAuditStore_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.Enabled = true
	cfg.Audit.SQLitePath = t.TempDir() + "/audit.db"

	audit, err := ProvideAuditStore(cfg)
	require.NoError(t, err)
	defer audit.Close()
	assert.IsType(t, &internalrepo.SQLiteAudit{}, audit)
}

func TestProvidePriceHistory_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.MarketData.Providers = []string{"finance-go", "bloomberg"}

	c := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer c.Close()

	_, err := ProvidePriceHistory(cfg, c, nopMetrics{}, applogger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bloomberg")
}

func TestProvideVectorStore(t *testing.T) {
	cfg := config.Default()
	cfg.Regulations.EmbeddingsDir = t.TempDir()

	store, err := ProvideVectorStore(cfg, constEmbedder{}, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &vectorstore.Memory{}, store)

	cfg.VectorStore.Backend = "redis"
	_, err = ProvideVectorStore(cfg, constEmbedder{}, nil)
	assert.Error(t, err)
}

func TestProvideReloadJobs(t *testing.T) {
	cfg := config.Default()
	l := applogger.Nop()
	ix := usecase.NewRegulationIndex(nil, nil, nil, "", nopMetrics{}, l)

	jobs, err := ProvideReloadJobs(cfg, ix, l)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	cfg.Regulations.ReloadCron = "0 3 * * *"
	cfg.Regulations.Watch = true
	jobs, err = ProvideReloadJobs(cfg, ix, l)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.IsType(t, &usecase.ReloadScheduler{}, jobs[0])
	assert.IsType(t, &usecase.ReloadWatcher{}, jobs[1])

	cfg.Regulations.ReloadCron = "not a cron"
	_, err = ProvideReloadJobs(cfg, ix, l)
	assert.Error(t, err)
}

func TestResources_CloseNewestFirst(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	res := Resources{
		orderCloser{name: "redis", order: &order},
		orderCloser{name: "store", order: &order, err: boom},
		orderCloser{name: "events", order: &order},
	}

	err := res.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"events", "store", "redis"}, order)
}
