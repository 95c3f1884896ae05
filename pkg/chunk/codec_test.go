package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("squish round trip "), 1024)

	compressed := Compress(original)
	require.NotEmpty(t, compressed)
	assert.Less(t, len(compressed), len(original), "repetitive input should shrink")

	decoded, err := Decompress(compressed, MaxDecompressedSize)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCompressEmptyInput(t *testing.T) {
	compressed := Compress(nil)

	decoded, err := Decompress(compressed, MaxDecompressedSize)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecompressSizeLimit(t *testing.T) {
	original := bytes.Repeat([]byte{0xaa}, 4096)
	compressed := Compress(original)

	_, err := Decompress(compressed, 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeExceeded)
}

func TestDecompressGarbage(t *testing.T) {
	_, err := Decompress([]byte("this is not a zstd frame"), MaxDecompressedSize)
	assert.Error(t, err)
}
