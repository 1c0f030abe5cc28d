package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstdCompressor_RoundTrip(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	defer c.Close()

	original := []byte(`[{"id":"t1","productName":"Coffee voucher","tags":["cafe"]}]`)
	compressed, err := c.Compress(original)
	require.NoError(t, err)

	restored, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestZstdCompressor_ShrinksRepetitiveData(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	defer c.Close()

	original := []byte(strings.Repeat(`{"id":"t1","completed":false},`, 500))
	compressed, err := c.Compress(original)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(original))
}

func TestZstdCompressor_EmptyInput(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	defer c.Close()

	compressed, err := c.Compress(nil)
	require.NoError(t, err)

	restored, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, restored)
}

func TestZstdCompressor_RejectsGarbage(t *testing.T) {
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Decompress([]byte("definitely not zstd"))
	assert.Error(t, err)
}
