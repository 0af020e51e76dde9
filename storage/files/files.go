package files

import (
	"context"

	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core"
)

var ErrBlobNotFound = errors.New("blob not found")

// Open returns the blob store selected by conf.Storage.Backend.
func Open(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Backend {
	case "b2":
		return NewB2Storage(ctx, conf.Storage.B2AccountID, conf.Storage.B2AppKey, conf.Storage.B2Bucket)
	case "local", "":
		return NewLocalStorage(conf.Storage.LocalRoot)
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}
