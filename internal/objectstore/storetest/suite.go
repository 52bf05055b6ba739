// Package storetest is a conformance suite shared by every objectstore.Store
// implementation.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"stowage/internal/objectstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) objectstore.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("HeadMissing", func(t *testing.T) { testHeadMissing(t, newStore(t)) })
	t.Run("PutHeadGet", func(t *testing.T) { testPutHeadGet(t, newStore(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("EmptyObject", func(t *testing.T) { testEmptyObject(t, newStore(t)) })
}

func put(t *testing.T, s objectstore.Store, key string, data []byte) {
	t.Helper()
	require.NoError(t, s.PutObject(context.Background(), key, bytes.NewReader(data), int64(len(data))))
}

func read(t *testing.T, s objectstore.Store, key string) []byte {
	t.Helper()
	rc, err := s.GetObject(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func testHeadMissing(t *testing.T, s objectstore.Store) {
	info, err := s.HeadObject(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Zero(t, info.Size)
}

func testPutHeadGet(t *testing.T, s objectstore.Store) {
	put(t, s, "projects/p1/a.txt", []byte("hello world"))

	info, err := s.HeadObject(context.Background(), "projects/p1/a.txt")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(11), info.Size)

	assert.Equal(t, []byte("hello world"), read(t, s, "projects/p1/a.txt"))
}

func testOverwrite(t *testing.T, s objectstore.Store) {
	put(t, s, "k", []byte("first"))
	put(t, s, "k", []byte("second version"))

	info, err := s.HeadObject(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(len("second version")), info.Size)
	assert.Equal(t, []byte("second version"), read(t, s, "k"))
}

func testGetMissing(t *testing.T, s objectstore.Store) {
	_, err := s.GetObject(context.Background(), "nope")
	assert.True(t, errors.Is(err, objectstore.ErrObjectNotFound), "got %v", err)
}

func testDelete(t *testing.T, s objectstore.Store) {
	put(t, s, "k", []byte("data"))
	require.NoError(t, s.DeleteObject(context.Background(), "k"))

	info, err := s.HeadObject(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, info.Exists)

	require.NoError(t, s.DeleteObject(context.Background(), "k"), "deleting twice is fine")
}

func testEmptyObject(t *testing.T, s objectstore.Store) {
	put(t, s, "empty", nil)

	info, err := s.HeadObject(context.Background(), "empty")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Zero(t, info.Size)
}
