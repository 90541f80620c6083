package storage

import (
	"context"
	"errors"
	"io"
)

var ErrInvalidKey = errors.New("invalid object key")

type Object struct {
	Name string
	Size int64
}

type Provider interface {
	PutObject(ctx context.Context, bucket, key string, data io.Reader) (int64, error)

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	OpenObject(ctx context.Context, bucket, key string) (io.ReadSeekCloser, Object, error)

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)
}
