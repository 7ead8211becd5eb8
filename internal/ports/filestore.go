package ports

import "context"

// FileStore keeps uploaded receipt files. Handles are opaque to callers.
type FileStore interface {
	Store(ctx context.Context, data []byte, suggestedName string) (string, error)
	Read(ctx context.Context, handle string) ([]byte, error)
	// Delete is best-effort: a missing object is not an error.
	Delete(ctx context.Context, handle string) error
}
