package ports

import "context"

// SecretStore persists small string values such as bearer tokens.
// Delete must succeed when the key is already absent.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
