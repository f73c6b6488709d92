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

func TestDiskPutOpenRemove(t *testing.T) {
	ctx := context.Background()
	d, err := NewDisk(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, d.Put(ctx, "abc_call.mp4", strings.NewReader("video-bytes"), 11, "video/mp4"))

	rc, obj, err := d.Open(ctx, "abc_call.mp4")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "video-bytes", string(body))
	assert.Equal(t, int64(11), obj.Size)
	assert.Equal(t, "video/mp4", obj.ContentType)

	list, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "abc_call.mp4", list[0].Key)

	require.NoError(t, d.Remove(ctx, "abc_call.mp4"))
	_, _, err = d.Open(ctx, "abc_call.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskRemoveMissingIsNotAnError(t *testing.T) {
	d, err := NewDisk(t.TempDir(), nil)
	require.NoError(t, err)
	assert.NoError(t, d.Remove(context.Background(), "gone.mp4"))
}

func TestDiskRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	d, err := NewDisk(filepath.Join(root, "media"), nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o600))

	for _, key := range []string{"../secret.txt", "a/b.mp4", "", ".hidden", "..", "x..mp4"} {
		_, _, err := d.Open(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		assert.ErrorIs(t, d.Put(context.Background(), key, strings.NewReader(""), 0, ""), ErrInvalidKey, key)
	}
}

func TestDiskPutCancelled(t *testing.T) {
	d, err := NewDisk(t.TempDir(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, d.Put(ctx, "a.mp4", strings.NewReader("data"), 4, ""))
	list, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentTypeForKey("a.MP4"))
	assert.Equal(t, "video/webm", ContentTypeForKey("a.webm"))
	assert.Equal(t, "application/octet-stream", ContentTypeForKey("a"))
}

func TestNewStoreSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(context.Background(), BackendDisk, dir, S3Config{}, nil)
	require.NoError(t, err)
	d, ok := s.(*Disk)
	require.True(t, ok)
	assert.Equal(t, dir, d.Root())

	_, err = NewStore(context.Background(), BackendS3, dir, S3Config{Region: "us-east-1"}, nil)
	assert.Error(t, err)

	_, err = NewStore(context.Background(), "ftp", dir, S3Config{}, nil)
	assert.Error(t, err)
}
