package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	data := []byte("leaf")
	ref, err := s.Put(ctx, "s1/staged/a.png", data, "image/png")
	require.NoError(t, err)
	data[0] = 'X'

	blob, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("leaf"), blob.Data)
	assert.Equal(t, "image/png", blob.ContentType)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(4), s.Bytes())

	require.NoError(t, s.Release(ctx, ref))
	require.NoError(t, s.Release(ctx, ref))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.Bytes())

	_, err = s.Get(ctx, ref)
	assert.ErrorIs(t, err, diagnosis.ErrBlobNotFound)
}
