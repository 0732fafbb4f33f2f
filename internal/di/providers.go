package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"RiskApprove/internal/domain/repository"
	"RiskApprove/internal/handler/api"
	internalrepo "RiskApprove/internal/repository"
	"RiskApprove/internal/repository/vectorstore"
	"RiskApprove/internal/service/embedder"
	"RiskApprove/internal/service/marketdata"
	"RiskApprove/internal/services/documents"
	"RiskApprove/internal/usecase"
	"RiskApprove/pkg/cache"
	pkgch "RiskApprove/pkg/clickhouse"
	"RiskApprove/pkg/config"
	xhttp "RiskApprove/pkg/http"
	"RiskApprove/pkg/http/middleware"
	pkgkafka "RiskApprove/pkg/kafka"
	applogger "RiskApprove/pkg/logger"
	"RiskApprove/pkg/metrics"
	"RiskApprove/pkg/server"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/redis/go-redis/v9"
)

const (
	mlServiceName  = "ml-service"
	ragServiceName = "rag-service"

	l1CacheTTL      = time.Minute
	rebuildLockKey  = "regulations:rebuild"
	storeInitBudget = 15 * time.Second
)

// ReloadJobs are the background triggers of regulation index rebuilds.
type ReloadJobs []server.Job

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient dials Redis when the cache or the vector store needs it
// and returns nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Cache.Backend == "memory" && cfg.VectorStore.Backend != "redis" {
		return nil, nil
	}
	client, _, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisDialTimeout(cfg.Redis.Timeout),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideCache picks the cache backend.
func ProvideCache(cfg *config.Config, client *redis.Client) cache.Service {
	switch cfg.Cache.Backend {
	case "redis":
		if client != nil {
			return cache.NewRedisCacheFromClient(client, cfg.Redis.Prefix)
		}
	case "layered":
		if client != nil {
			return cache.NewLayeredCache(cache.NewRedisCacheFromClient(client, cfg.Redis.Prefix), cfg.Cache.MemoryMaxSize, l1CacheTTL)
		}
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
}

// ProvideEventPublisher returns a Kafka publisher, or a no-op one when Kafka is off.
func ProvideEventPublisher(cfg *config.Config) (repository.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopEvents{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers...),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaEvents(producer), nil
}

// ProvidePriceHistory builds the provider chain named in config behind the cache.
func ProvidePriceHistory(cfg *config.Config, c cache.Service, m repository.Metrics, l *applogger.Logger) (repository.PriceHistory, error) {
	var providers []repository.PriceHistory
	for _, name := range cfg.MarketData.Providers {
		switch name {
		case "finance-go":
			providers = append(providers, marketdata.NewFinanceGo())
		case "yahoo-chart":
			client := xhttp.NewClient(
				xhttp.WithTimeout(cfg.MarketData.Timeout),
				xhttp.WithHeader("User-Agent", cfg.MarketData.UserAgent),
			)
			providers = append(providers, marketdata.NewYahooChart(client, cfg.MarketData.ChartBaseURL))
		default:
			return nil, fmt.Errorf("market_data: unknown provider %q", name)
		}
	}
	return marketdata.NewCached(marketdata.NewChain(l, m, providers...), c, cfg.MarketData.CacheTTL), nil
}

// ProvidePredictionStore opens the ClickHouse history store, or a no-op one when disabled.
func ProvidePredictionStore(cfg *config.Config) (repository.PredictionStore, error) {
	if !cfg.ClickHouse.Enabled {
		return internalrepo.NoopPredictions{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeInitBudget)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	store, err := internalrepo.NewClickHousePredictions(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePredictor creates the prediction use case.
func ProvidePredictor(
	cfg *config.Config,
	history repository.PriceHistory,
	store repository.PredictionStore,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(history, m, l, cfg.MarketData.PeriodDays, cfg.MarketData.MaxConcurrency,
		usecase.WithPredictionStore(store),
		usecase.WithPredictionEvents(events, cfg.Kafka.PredictionTopic),
	)
}

// ProvideRateLimiter returns nil when rate limiting is off.
func ProvideRateLimiter(cfg *config.Config) *middleware.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return middleware.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

func serverOptions(cfg *config.Config, name string, port int, limiter *middleware.Limiter) []xhttp.ServerOption {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return []xhttp.ServerOption{
		xhttp.WithName(name),
		xhttp.WithPort(port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRateLimit(limiter),
	}
}

// ProvideMLApp assembles the prediction service.
func ProvideMLApp(
	cfg *config.Config,
	l *applogger.Logger,
	predictor *usecase.Predictor,
	limiter *middleware.Limiter,
	client *redis.Client,
	c cache.Service,
	store repository.PredictionStore,
	events repository.EventPublisher,
) *server.App {
	h := api.NewPredictEchoHandler(l, predictor)
	srv := xhttp.NewServer(l, []xhttp.Handler{h}, serverOptions(cfg, mlServiceName, cfg.Server.MLPort, limiter)...)

	opts := closerOptions(client)
	opts = append(opts,
		server.WithCloser("cache", c),
		server.WithCloser("prediction-store", store),
		server.WithCloser("events", events),
	)
	return server.New(mlServiceName, l, srv, opts...)
}

// ProvideEmbedder picks the embedding adapter.
func ProvideEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	return embedder.New(cfg.Embedding)
}

// ProvideVectorStore opens the configured vector store.
func ProvideVectorStore(cfg *config.Config, emb embedding.Embedder, client *redis.Client) (repository.VectorStore, error) {
	if cfg.VectorStore.Backend == "redis" {
		if client == nil {
			return nil, errors.New("vector store: redis backend needs a redis client")
		}
		return vectorstore.NewRedis(client, emb, cfg.VectorStore.IndexName), nil
	}
	store, err := vectorstore.NewMemory(emb, cfg.Regulations.EmbeddingsDir)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	return store, nil
}

// ProvideDocumentLoader creates the regulation directory loader.
func ProvideDocumentLoader(cfg *config.Config, l *applogger.Logger) *documents.DirectoryLoader {
	return documents.NewDirectoryLoader(l, documents.WithPDFToText(cfg.Regulations.PDFToText))
}

// ProvideSplitter creates the chunker.
func ProvideSplitter(cfg *config.Config) (*documents.Splitter, error) {
	return documents.NewSplitter(
		documents.WithChunkSize(cfg.Regulations.ChunkSize),
		documents.WithOverlap(cfg.Regulations.ChunkOverlap),
	)
}

// ProvideRegulationIndex creates the process-wide index handle. A shared
// Redis store also shares a rebuild lock.
func ProvideRegulationIndex(
	cfg *config.Config,
	loader *documents.DirectoryLoader,
	splitter *documents.Splitter,
	store repository.VectorStore,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.RegulationIndex {
	var opts []usecase.IndexOption
	if cfg.VectorStore.Backend == "redis" {
		opts = append(opts, usecase.WithRebuildLock(c, cache.Key(cfg.Redis.Prefix, rebuildLockKey)))
	}
	return usecase.NewRegulationIndex(loader, splitter, store, cfg.Regulations.Dir, m, l, opts...)
}

// ProvideAuditStore opens the SQLite audit trail, or a no-op one when disabled.
func ProvideAuditStore(cfg *config.Config) (repository.AuditStore, error) {
	if !cfg.Audit.Enabled {
		return internalrepo.NoopAudit{}, nil
	}
	store, err := internalrepo.NewSQLiteAudit(cfg.Audit.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	return store, nil
}

// ProvideCompliance creates the compliance use case.
func ProvideCompliance(
	cfg *config.Config,
	ix *usecase.RegulationIndex,
	audit repository.AuditStore,
	events repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Compliance {
	return usecase.NewCompliance(ix, usecase.ComplianceConfig{
		TopK:          cfg.Regulations.TopK,
		MaxCitations:  cfg.Regulations.MaxCitations,
		CitationChars: cfg.Regulations.CitationChars,
	}, m, l,
		usecase.WithAuditStore(audit),
		usecase.WithComplianceEvents(events, cfg.Kafka.ComplianceTopic),
	)
}

// ProvideReloadJobs creates the cron and directory-watch rebuild triggers
// enabled in config.
func ProvideReloadJobs(cfg *config.Config, ix *usecase.RegulationIndex, l *applogger.Logger) (ReloadJobs, error) {
	var jobs ReloadJobs
	if cfg.Regulations.ReloadCron != "" {
		s, err := usecase.NewReloadScheduler(cfg.Regulations.ReloadCron, ix, l)
		if err != nil {
			return nil, fmt.Errorf("reload schedule: %w", err)
		}
		jobs = append(jobs, s)
	}
	if cfg.Regulations.Watch {
		jobs = append(jobs, usecase.NewReloadWatcher(cfg.Regulations.Dir, cfg.Regulations.WatchDebounce, ix, l))
	}
	return jobs, nil
}

// ProvideRAGApp assembles the compliance service. The index is opened in the
// background so /health answers while it builds.
func ProvideRAGApp(
	cfg *config.Config,
	l *applogger.Logger,
	compliance *usecase.Compliance,
	ix *usecase.RegulationIndex,
	loader *documents.DirectoryLoader,
	jobs ReloadJobs,
	limiter *middleware.Limiter,
	client *redis.Client,
	c cache.Service,
	store repository.VectorStore,
	audit repository.AuditStore,
	events repository.EventPublisher,
) *server.App {
	h := api.NewComplianceEchoHandler(l, compliance, ix)
	srv := xhttp.NewServer(l, []xhttp.Handler{h}, serverOptions(cfg, ragServiceName, cfg.Server.RAGPort, limiter)...)

	if err := loader.CheckPDFTool(); err != nil {
		l.Warn("pdf files will be skipped", applogger.Error(err))
	}

	opts := closerOptions(client)
	opts = append(opts,
		server.WithCloser("cache", c),
		server.WithCloser("vector-store", store),
		server.WithCloser("audit-store", audit),
		server.WithCloser("events", events),
		server.WithStartup("regulation-index", ix.Open),
	)
	for _, j := range jobs {
		opts = append(opts, server.WithJob(j))
	}
	return server.New(ragServiceName, l, srv, opts...)
}

func closerOptions(client *redis.Client) []server.Option {
	if client == nil {
		return nil
	}
	return []server.Option{server.WithCloser("redis", client)}
}

// Resources closes what an offline command opened, newest first.
type Resources []io.Closer

func (r Resources) Close() error {
	var errs []error
	for i := len(r) - 1; i >= 0; i-- {
		if err := r[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OfflineIndex drives a regulation index rebuild without an HTTP server.
type OfflineIndex struct {
	Index     *usecase.RegulationIndex
	Loader    *documents.DirectoryLoader
	Resources Resources
}

// ProvideOfflineIndex bundles the index with the resources it holds.
func ProvideOfflineIndex(
	ix *usecase.RegulationIndex,
	loader *documents.DirectoryLoader,
	client *redis.Client,
	c cache.Service,
	store repository.VectorStore,
) *OfflineIndex {
	var res Resources
	if client != nil {
		res = append(res, client)
	}
	res = append(res, c, store)
	return &OfflineIndex{Index: ix, Loader: loader, Resources: res}
}

// OfflinePredictor runs predictions without an HTTP server.
type OfflinePredictor struct {
	Predictor *usecase.Predictor
	Resources Resources
}

// ProvideOfflinePredictor bundles the predictor with the resources it holds.
func ProvideOfflinePredictor(
	p *usecase.Predictor,
	client *redis.Client,
	c cache.Service,
	store repository.PredictionStore,
	events repository.EventPublisher,
) *OfflinePredictor {
	var res Resources
	if client != nil {
		res = append(res, client)
	}
	res = append(res, c, store, events)
	return &OfflinePredictor{Predictor: p, Resources: res}
}
