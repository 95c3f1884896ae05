package chunk

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// MaxDecompressedSize is the safety ceiling for a single decompressed
// chunk. A record claiming to decode past this limit is treated as
// corrupt rather than allocated for.
const MaxDecompressedSize = 5 * MaxSize // 10 MiB

// ErrSizeExceeded reports a chunk whose decompressed size exceeds the
// limit passed to Decompress. It indicates a corrupted or adversarial
// compressed-size field.
var ErrSizeExceeded = errors.New("chunk: decompressed size exceeds limit")

// encoder and decoder are shared across all calls. Both are safe for
// concurrent use by EncodeAll/DecodeAll. The encoder level is a fixed
// constant tuned for the throughput/ratio trade-off and is not
// configurable per call.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	)
	if err != nil {
		panic("chunk: zstd encoder initialization failed: " + err.Error())
	}

	decoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecompressedSize),
	)
	if err != nil {
		panic("chunk: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns data compressed as a single zstd frame.
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, nil)
}

// Decompress reverses Compress. It fails if data is not a valid zstd
// frame or if the decoded size would exceed maxSize.
func Decompress(data []byte, maxSize int) ([]byte, error) {
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes decoded, limit %d", ErrSizeExceeded, len(out), maxSize)
	}
	return out, nil
}
