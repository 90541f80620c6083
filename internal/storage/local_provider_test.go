package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderPutAndGet(t *testing.T) {
	dir := t.TempDir()
	p, err := NewLocalProvider(dir)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := p.PutObject(ctx, "tutor", "20240501_140500_notes.txt", strings.NewReader("Test content"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	data, err := os.ReadFile(filepath.Join(dir, "tutor", "20240501_140500_notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Test content", string(data))

	data, err = p.GetObject(ctx, "tutor", "20240501_140500_notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "Test content", string(data))

	f, obj, err := p.OpenObject(ctx, "tutor", "20240501_140500_notes.txt")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, Object{Name: "20240501_140500_notes.txt", Size: 12}, obj)
	streamed, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "Test content", string(streamed))
}

func TestLocalProviderRejectsTraversal(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../escape.txt", "a/b.txt", "..", ""} {
		_, err := p.PutObject(ctx, "tutor", key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	_, err = p.GetObject(ctx, "..", "x.txt")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalProviderListObjects(t *testing.T) {
	p, err := NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	objs, err := p.ListObjects(ctx, "empty", "")
	require.NoError(t, err)
	assert.Empty(t, objs)

	for _, key := range []string{"a1.txt", "a2.txt", "b1.txt"} {
		_, err := p.PutObject(ctx, "tutor", key, strings.NewReader(key))
		require.NoError(t, err)
	}

	objs, err = p.ListObjects(ctx, "tutor", "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Object{{Name: "a1.txt", Size: 6}, {Name: "a2.txt", Size: 6}}, objs)
}
