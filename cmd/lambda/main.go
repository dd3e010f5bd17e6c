package main

import (
	"context"
	"log"
	"strings"
	"time"

	"knowde-backend/infrastructure/config"
	"knowde-backend/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"go.uber.org/zap"
)

// Global variables for Lambda lifecycle management
var (
	// adapter wraps the HTTP router for AWS Lambda integration
	adapter *httpadapter.HandlerAdapterV2

	// container holds the dependency injection container
	container *di.Container

	// coldStart tracks whether this is a cold start invocation
	coldStart = true

	// coldStartTime records when the cold start began
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()
	log.Println("Lambda cold start initiated")

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	adapter = httpadapter.NewV2(container.Handler)

	log.Printf("Lambda cold start completed in %v", time.Since(coldStartTime))
}

// Handler is the Lambda function handler. API Gateway's JWT authorizer has
// already validated the caller, so the verified claims are forwarded as
// trusted headers instead of re-validating the token inside the Lambda.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if container != nil && container.Logger != nil {
		container.Logger.Info("Lambda received request",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("request_id", req.RequestContext.RequestID),
		)
	}

	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}

	if claims := authorizerClaims(req); claims != nil {
		req.Headers["X-API-Gateway-Authorized"] = "true"

		if sub := firstClaim(claims, "uid", "sub"); sub != "" {
			req.Headers["X-User-ID"] = sub
		}
		if email, ok := claims["email"]; ok {
			req.Headers["X-User-Email"] = email
		}
		if roles, ok := claims["roles"]; ok {
			req.Headers["X-User-Roles"] = roles
		}

		// The original bearer token is spent; drop it so the in-process
		// validator never sees a token it cannot verify.
		delete(req.Headers, "authorization")
		delete(req.Headers, "Authorization")
	}

	resp, err := adapter.ProxyWithContext(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		resp.Headers["X-Cold-Start-Duration"] = time.Since(coldStartTime).String()
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	if container != nil && container.Logger != nil {
		container.Logger.Info("Lambda response",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
			zap.Int("status_code", resp.StatusCode),
		)

		if resp.StatusCode >= 400 && resp.StatusCode < 600 {
			container.Logger.Error("Lambda error response",
				zap.String("body", resp.Body),
				zap.Int("status_code", resp.StatusCode),
			)
		}
	}

	return resp, err
}

// authorizerClaims returns the JWT claims the API Gateway authorizer attached
// to the request, or nil when the route has no authorizer
func authorizerClaims(req events.APIGatewayV2HTTPRequest) map[string]string {
	auth := req.RequestContext.Authorizer
	if auth == nil || auth.JWT == nil || len(auth.JWT.Claims) == 0 {
		return nil
	}
	return auth.JWT.Claims
}

// firstClaim returns the first non-empty claim among the given keys
func firstClaim(claims map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(claims[key]); v != "" {
			return v
		}
	}
	return ""
}

// main is the entry point for the Lambda function
func main() {
	lambda.Start(Handler)
}
