package files

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/messengermaksym/diploma-project/core"
)

type b2Storage struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ core.FileStorage = (*b2Storage)(nil)

func NewB2Storage(ctx context.Context, accountID, appKey, bucketName string) (core.FileStorage, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Storage{client: client, bucket: bucket}, nil
}

func (sto *b2Storage) Save(ctx context.Context, key string, data io.Reader) error {
	w := sto.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return errors.Wrap(err, "writing b2 object")
	}
	return errors.Wrap(w.Close(), "closing b2 writer")
}

func (sto *b2Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := sto.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, errors.Wrap(err, "checking b2 object")
	}
	return obj.NewReader(ctx), nil
}

func (sto *b2Storage) Delete(ctx context.Context, key string) error {
	err := sto.bucket.Object(key).Delete(ctx)
	if b2.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "deleting b2 object")
}
