//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"net/http"

	"github.com/google/wire"
	"go.uber.org/zap"

	"knowde-backend/application/orchestration"
	"knowde-backend/application/ports"
	"knowde-backend/infrastructure/config"
	"knowde-backend/pkg/auth"
	"knowde-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       ports.DocumentStore
	Locker      ports.RunLocker
	Publisher   ports.EventPublisher
	Coordinator *orchestration.Coordinator
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
	Validator   *auth.JWTValidator
	Handler     http.Handler
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideDocumentStore,
	ProvideRunLocker,
	ProvideEventPublisher,
	ProvideLanguageModel,
	ProvideSearchProvider,
	ProvideMetrics,
	ProvideTracer,
	ProvideJWTValidator,
	ProvideWorkflowConfig,
	ProvideCoordinator,
	ProvidePromptHandler,
	ProvideGraphHandler,
	ProvideHTTPHandler,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
