package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider keeps objects as files under dir/bucket/key. It backs the
// development server's media uploads.
type LocalProvider struct {
	dir string
}

func NewLocalProvider(dir string) (*LocalProvider, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating storage directory: %w", err)
	}
	return &LocalProvider{dir: dir}, nil
}

// path resolves bucket/key under the root and rejects anything that would
// escape it.
func (p *LocalProvider) path(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range []string{bucket, key} {
		if part != filepath.Base(part) || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("%w: '%s'", ErrInvalidKey, part)
		}
	}
	return filepath.Join(p.dir, bucket, key), nil
}

func (p *LocalProvider) PutObject(ctx context.Context, bucket, key string, data io.Reader) (int64, error) {
	path, err := p.path(bucket, key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return 0, err
	}

	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, data)
	if err != nil {
		os.Remove(path) //nolint:errcheck
		return 0, err
	}
	return n, nil
}

func (p *LocalProvider) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	path, err := p.path(bucket, key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (p *LocalProvider) OpenObject(ctx context.Context, bucket, key string) (io.ReadSeekCloser, Object, error) {
	path, err := p.path(bucket, key)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, Object{}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Object{}, err
	}
	return f, Object{Name: key, Size: info.Size()}, nil
}

func (p *LocalProvider) ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error) {
	files, err := os.ReadDir(filepath.Join(p.dir, bucket))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var objects []Object
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if prefix != "" && !strings.HasPrefix(file.Name(), prefix) {
			continue
		}

		info, err := file.Info()
		if err != nil {
			return nil, err
		}

		objects = append(objects, Object{Name: file.Name(), Size: info.Size()})
	}

	return objects, nil
}
