package files

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core"
)

// localStorage keeps blobs on disk under a root directory. Keys are
// slash-separated relative paths.
type localStorage struct {
	root string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(root string) (core.FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &localStorage{root: root}, nil
}

func (sto *localStorage) Save(ctx context.Context, key string, data io.Reader) error {
	dst := filepath.Join(sto.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "creating blob dir")
	}
	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "creating blob")
	}
	if _, err = io.Copy(f, data); err != nil {
		f.Close()
		return errors.Wrap(err, "writing blob")
	}
	return errors.Wrap(f.Close(), "closing blob")
}

func (sto *localStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(sto.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, errors.Wrap(err, "opening blob")
	}
	return f, nil
}

func (sto *localStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(sto.root, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "deleting blob")
}
