package v1

import (
	"context"

	"github.com/atref/atref/internal/cache"
	"github.com/atref/atref/internal/canonical"
	"github.com/atref/atref/internal/orchestrator"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service is the resolution engine served by the handlers
type Service interface {
	ResolveInput(ctx context.Context, raw string) (*canonical.Record, error)
	ResolveAll(ctx context.Context, inputs []string) ([]orchestrator.Result, error)
	CacheStats() cache.Stats
	ClearCache(ctx context.Context)
}
