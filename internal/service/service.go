// Package service holds the request-scoped business logic: catalog reads and
// the prediction and crop-info orchestration. Nothing here caches results.
package service

import (
	"context"

	"go.uber.org/zap"
)

// loggerFromContext extracts the per-request zap.Logger stored by the
// correlation middleware, falling back to a no-op logger.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}
