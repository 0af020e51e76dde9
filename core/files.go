package core

import (
	"context"
	"io"
)

// FileStorage abstracts blob storage. Keys are opaque refs stored on models;
// implementations live in storage/files.
type FileStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
