package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
//
// The event stream (/api/v1/mock-pdf/events) needs a long-lived connection and
// is served by cmd/api only.

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"github.com/WeDesignz/WebApp-sub000/internal/bootstrap"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

type proxy interface {
	ProxyWithContext(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)
}

var (
	initOnce  sync.Once
	initErr   error
	ginLambda proxy
)

func initApp() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	return serve(ctx, ginLambda, initErr, req)
}

func serve(ctx context.Context, p proxy, bootErr error, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if bootErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": bootErr.Error()})
		return errorResponse(http.StatusServiceUnavailable, "bootstrap_failed", "Service is starting up, please retry"), nil
	}
	if p == nil {
		return errorResponse(http.StatusInternalServerError, "internal_error", "Router not initialized"), nil
	}
	return p.ProxyWithContext(ctx, req)
}

// errorResponse mirrors the router's error envelope so clients parse one shape.
func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{Code: code, Message: message}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Cache-Control": "no-store",
		},
	}
}

func main() {
	lambda.Start(handler)
}
