// Package devkey tracks the developer's API keys. Keys move from Active to
// Disabled only; there is no re-enable and no deletion.
package devkey

import (
	"context"

	"github.com/quantumwallet/qwallet/internal/gateway"
)

// Gateway is the subset of backend operations the lifecycle drives.
type Gateway interface {
	ListDeveloperKeys(ctx context.Context) ([]gateway.DeveloperKey, error)
	CreateDeveloperKey(ctx context.Context, name string) (*gateway.CreatedKey, error)
	DisableDeveloperKey(ctx context.Context, id int64) error
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}
