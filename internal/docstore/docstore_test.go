package docstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitURI(t *testing.T) {
	bucket, object, err := splitURI("gs://statements-bucket/statements/u1/abc/march.pdf")
	require.NoError(t, err)
	assert.Equal(t, "statements-bucket", bucket)
	assert.Equal(t, "statements/u1/abc/march.pdf", object)

	_, _, err = splitURI("s3://bucket/file.pdf")
	assert.Error(t, err)

	_, _, err = splitURI("gs://bucket-only")
	assert.Error(t, err)

	_, _, err = splitURI("gs://bucket/")
	assert.Error(t, err)
}

func TestFilenameFromURI(t *testing.T) {
	assert.Equal(t, "march.pdf", FilenameFromURI("gs://bucket/folder/march.pdf"))
	assert.Equal(t, "file.pdf", FilenameFromURI("gs://bucket/file.pdf"))
	assert.Equal(t, "bucket", FilenameFromURI("gs://bucket"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("%PDF-1.4 statement body")

	uri, err := store.Save(ctx, "user-1", "march.pdf", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.True(t, strings.HasSuffix(uri, "/march.pdf"))

	got, err := store.Fetch(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalStoreFetchRejectsForeignURI(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), "gs://bucket/file.pdf")
	assert.Error(t, err)
}

func TestLocalStoreStripsDirectoryFromFilename(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	uri, err := store.Save(context.Background(), "user-1", "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(uri, "/passwd"))
	assert.NotContains(t, uri, "..")
}
