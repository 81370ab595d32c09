package storage

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// ProofStore persists uploaded claim proofs and returns the URL they are served from.
type ProofStore interface {
	Store(ctx context.Context, key, contentType string, data []byte) (string, error)
	Open(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type bucketStore struct {
	bucket  *blob.Bucket
	baseURL string
}

// OpenProofStore opens a bucket by URL, e.g. "mem://" or "file:///var/uploads".
func OpenProofStore(ctx context.Context, bucketURL, publicBaseURL string) (ProofStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %q", bucketURL)
	}
	return &bucketStore{bucket: bucket, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// NewMemoryStore is an in-process store; objects vanish on restart.
func NewMemoryStore(ctx context.Context) (ProofStore, error) {
	return OpenProofStore(ctx, "mem://", "/uploads")
}

func (s *bucketStore) Store(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if err := s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return "", errors.Wrapf(err, "write %s", key)
	}
	return s.baseURL + "/" + key, nil
}

func (s *bucketStore) Open(ctx context.Context, key string) ([]byte, string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	return data, attrs.ContentType, nil
}

func (s *bucketStore) Delete(ctx context.Context, key string) error {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	return errors.WithStack(s.bucket.Delete(ctx, key))
}

func (s *bucketStore) Close() error {
	return s.bucket.Close()
}

// IsNotExist reports whether err means the object is missing.
func IsNotExist(err error) bool {
	return err != nil && gcerrors.Code(err) == gcerrors.NotFound
}
