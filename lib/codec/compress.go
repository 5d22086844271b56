// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a payload. The
// numeric values are carried on the wire; do not renumber.
type Compression uint8

const (
	// CompressionNone sends the payload unchanged.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression. Cheap enough for every
	// chat message; the default when compression is enabled.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level. Better ratio on
	// long text at a higher CPU cost.
	CompressionZstd Compression = 2
)

// ErrIncompressible is returned by Compress when the compressed form
// would not be smaller than the input.
var ErrIncompressible = errors.New("codec: payload is incompressible")

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name. The empty string
// means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("codec: unknown compression %q", name)
	}
}

// Compress compresses data with the given algorithm. CompressionNone
// returns data unchanged without copying.
func Compress(data []byte, algorithm Compression) ([]byte, error) {
	switch algorithm {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	case CompressionZstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("codec: unsupported compression %d", uint8(algorithm))
	}
}

// Decompress reverses Compress. size is the uncompressed length
// recorded by the sender; a mismatch is an error.
func Decompress(compressed []byte, algorithm Compression, size int) ([]byte, error) {
	switch algorithm {
	case CompressionNone:
		if len(compressed) != size {
			return nil, fmt.Errorf("codec: uncompressed payload is %d bytes, frame says %d", len(compressed), size)
		}
		return compressed, nil
	case CompressionLZ4:
		return decompressLZ4(compressed, size)
	case CompressionZstd:
		return decompressZstd(compressed, size)
	default:
		return nil, fmt.Errorf("codec: unsupported compression %d", uint8(algorithm))
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, ErrIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	if size < 0 || size > maxPayloadSize {
		return nil, fmt.Errorf("codec: lz4 payload size %d out of range", size)
	}
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("codec: lz4 decompress: got %d bytes, frame says %d", read, size)
	}
	return destination, nil
}

// maxPayloadSize bounds the allocation a frame can request on
// decompression. Datagrams are at most 64 KiB on the wire; 16 MiB
// leaves room for highly compressible text.
const maxPayloadSize = 16 << 20

// zstd encoders and decoders are safe for concurrent use and costly to
// build, so one of each is shared.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxPayloadSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, ErrIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	if size < 0 || size > maxPayloadSize {
		return nil, fmt.Errorf("codec: zstd payload size %d out of range", size)
	}
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("codec: zstd decompress: got %d bytes, frame says %d", len(result), size)
	}
	return result, nil
}
