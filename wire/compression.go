package wire

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"pattern-detector/models"
)

// zstdMagic is the zstd frame header (0xFD2FB528 little-endian).
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("failed to create encoder: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if codecErr != nil {
			codecErr = fmt.Errorf("failed to create decoder: %w", codecErr)
		}
	})
	return encoder, decoder, codecErr
}

// IsCompressed reports whether buf starts with a zstd frame header.
func IsCompressed(buf []byte) bool {
	return bytes.HasPrefix(buf, zstdMagic)
}

// Compress wraps a frame in zstd.
func Compress(frame []byte) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(frame, make([]byte, 0, len(frame)/2)), nil
}

// Open decodes a frame that may be zstd-compressed.
func Open(buf []byte) ([]models.Series, error) {
	if !IsCompressed(buf) {
		return Decode(buf)
	}
	_, dec, err := codecs()
	if err != nil {
		return nil, err
	}
	frame, err := dec.DecodeAll(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	return Decode(frame)
}
