//go:build wireinject
// +build wireinject

package di

import (
	"RiskApprove/pkg/config"
	"RiskApprove/pkg/server"

	"github.com/google/wire"
)

var commonSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideRedisClient,
	ProvideCache,
	ProvideEventPublisher,
)

var mlSet = wire.NewSet(
	commonSet,
	ProvidePriceHistory,
	ProvidePredictionStore,
	ProvidePredictor,
)

var ragSet = wire.NewSet(
	commonSet,
	ProvideEmbedder,
	ProvideVectorStore,
	ProvideDocumentLoader,
	ProvideSplitter,
	ProvideRegulationIndex,
)

// InitializeMLApp wires the prediction service.
func InitializeMLApp(cfg *config.Config) (*server.App, error) {
	wire.Build(mlSet, ProvideRateLimiter, ProvideMLApp)
	return nil, nil
}

// InitializeRAGApp wires the compliance service.
func InitializeRAGApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ragSet,
		ProvideAuditStore,
		ProvideCompliance,
		ProvideReloadJobs,
		ProvideRateLimiter,
		ProvideRAGApp,
	)
	return nil, nil
}

// InitializeOfflineIndex wires the regulation index for the index command.
func InitializeOfflineIndex(cfg *config.Config) (*OfflineIndex, error) {
	wire.Build(ragSet, ProvideOfflineIndex)
	return nil, nil
}

// InitializeOfflinePredictor wires the predictor for the predict command.
func InitializeOfflinePredictor(cfg *config.Config) (*OfflinePredictor, error) {
	wire.Build(mlSet, ProvideOfflinePredictor)
	return nil, nil
}
