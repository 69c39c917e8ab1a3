package storage

import (
	"context"
	"encoding/json"
)

// KV is the durable key-value mapping owned by the privileged context.
// Values are JSON documents; a key absent from Get's result does not exist.
type KV interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, items map[string]any) error
	Remove(ctx context.Context, keys ...string) error
}
