// Package cache implements the opt-in response cache for deterministic
// capability calls (embedding, NLI). A nil Cache means the feature is
// disabled entirely: no storage is allocated and no key is computed.
package cache

import (
	"context"

	"github.com/modelmux/modelmux/pkg/utils"
)

// Cache stores computed results keyed by a stable hash. Get reports
// whether the key was found (and unexpired); implementations evict
// least-recently-used entries once capacity is exceeded.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Close() error
}

// Key derives the cache key for an operation. The inputs are hashed in
// order, so swapping multi-input arguments changes the key.
func Key(operation, model string, inputs ...string) string {
	parts := append([]string{operation, model}, inputs...)
	return utils.HashKey(parts...)
}
