package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"knowde-backend/application/orchestration"
	"knowde-backend/application/ports"
	"knowde-backend/infrastructure/ai"
	"knowde-backend/infrastructure/config"
	"knowde-backend/infrastructure/messaging/eventbridge"
	"knowde-backend/infrastructure/persistence/docstore"
	"knowde-backend/infrastructure/persistence/dynamodb"
	"knowde-backend/infrastructure/search"
	"knowde-backend/interfaces/http/rest"
	"knowde-backend/interfaces/http/rest/handlers"
	"knowde-backend/pkg/auth"
	"knowde-backend/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideDocumentStore creates the document store named by the configuration
func ProvideDocumentStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.DocumentStore {
	if cfg.DocStoreBackend == "memory" {
		return docstore.NewMemoryStore()
	}
	return dynamodb.NewDocumentStore(client, cfg.DynamoDBTable, logger)
}

// ProvideRunLocker creates the run locker matching the document store backend
func ProvideRunLocker(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.RunLocker {
	if cfg.DocStoreBackend == "memory" {
		return docstore.NewLocalRunLocker()
	}
	return dynamodb.NewRunLocker(client, cfg.LockTable, logger)
}

// ProvideEventPublisher creates the EventBridge-backed publisher
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideLanguageModel creates the language-model capability
func ProvideLanguageModel(cfg *config.Config, logger *zap.Logger) ports.LanguageModel {
	return ai.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout, logger)
}

// ProvideSearchProvider creates the web-search capability
func ProvideSearchProvider(cfg *config.Config, logger *zap.Logger) ports.SearchProvider {
	return search.NewClient(cfg.SearchAPIKey, cfg.SearchEngineID, cfg.SearchTimeout, logger)
}

// ProvideMetrics creates the metrics instance; nil disables metric emission
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	namespace := fmt.Sprintf("Knowde/%s", cfg.Environment)
	return observability.NewMetrics(namespace, client)
}

// ProvideTracer creates the tracer; nil disables tracing
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer("knowde-backend")
}

// ProvideJWTValidator creates the token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" && cfg.IsDevelopment() {
		secret = "development-secret-change-in-production"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideWorkflowConfig maps the application configuration onto the
// orchestration retry bounds
func ProvideWorkflowConfig(cfg *config.Config) orchestration.Config {
	wfCfg := orchestration.DefaultConfig()
	if cfg.CapabilityAttempts > 0 {
		wfCfg.CapabilityAttempts = cfg.CapabilityAttempts
	}
	if cfg.RetryDelay > 0 {
		wfCfg.RetryDelay = cfg.RetryDelay
	}
	if cfg.RunLockTTL > 0 {
		wfCfg.RunLockTTL = cfg.RunLockTTL
	}
	return wfCfg
}

// ProvideCoordinator wires the orchestration coordinator
func ProvideCoordinator(
	lm ports.LanguageModel,
	searchProvider ports.SearchProvider,
	store ports.DocumentStore,
	publisher ports.EventPublisher,
	locker ports.RunLocker,
	logger *zap.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	wfCfg orchestration.Config,
) *orchestration.Coordinator {
	return orchestration.NewCoordinator(lm, searchProvider, store, publisher, locker, logger, metrics, tracer, wfCfg)
}

// ProvidePromptHandler creates the prompt handler
func ProvidePromptHandler(coordinator *orchestration.Coordinator, logger *zap.Logger) *handlers.PromptHandler {
	return handlers.NewPromptHandler(coordinator, logger)
}

// ProvideGraphHandler creates the read-side handler
func ProvideGraphHandler(store ports.DocumentStore, logger *zap.Logger) *handlers.GraphHandler {
	return handlers.NewGraphHandler(store, logger)
}

// ProvideHTTPHandler assembles the full HTTP router. A configured rate-limit
// table shares limiter state across instances; otherwise limits are per
// process.
func ProvideHTTPHandler(
	promptHandler *handlers.PromptHandler,
	graphHandler *handlers.GraphHandler,
	validator *auth.JWTValidator,
	dynamoClient *awsdynamodb.Client,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	var ipLimiter, userLimiter auth.RateLimiter
	if cfg.RateLimitTable != "" {
		ipLimiter = auth.NewDistributedIPRateLimiter(dynamoClient, cfg.RateLimitTable, 100)
		userLimiter = auth.NewDistributedUserRateLimiter(dynamoClient, cfg.RateLimitTable, 60)
	} else {
		ipLimiter = auth.NewIPRateLimiter(100)
		userLimiter = auth.NewUserRateLimiter(60)
	}
	return rest.NewRouter(promptHandler, graphHandler, validator, ipLimiter, userLimiter, logger, cfg.EnableCORS).Setup()
}
