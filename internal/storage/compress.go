package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls
var (
	contentEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	contentDecoder, _ = zstd.NewReader(nil)
)

func compressContent(content string) []byte {
	return contentEncoder.EncodeAll([]byte(content), nil)
}

func decompressContent(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	out, err := contentDecoder.DecodeAll(blob, nil)
	if err != nil {
		return "", fmt.Errorf("decompress content: %w", err)
	}
	return string(out), nil
}
