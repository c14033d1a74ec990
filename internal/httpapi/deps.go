package httpapi

import (
	"context"

	"go.uber.org/zap"

	"internwatch-engine/internal/adapter"
	"internwatch-engine/internal/orchestrator"
	"internwatch-engine/internal/store"
)

type Deps struct {
	Store    *store.Store
	Registry *adapter.Registry
	Logger   *zap.Logger

	// Crawl entrypoint (inject for testability)
	RunSource func(ctx context.Context, code string) (orchestrator.Result, error)
}
