package proto

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Wire messages are prefixed with a single framing byte so large payloads
// can travel compressed without a protocol version bump.
const (
	frameRaw  byte = 0
	frameZstd byte = 1
)

// PackMessage wraps an encoded envelope for the wire, compressing it when it
// exceeds threshold bytes and an encoder is available.
func PackMessage(enc *zstd.Encoder, data []byte, threshold int) []byte {
	if enc != nil && threshold > 0 && len(data) > threshold {
		packed := make([]byte, 1, len(data)/2+1)
		packed[0] = frameZstd
		return enc.EncodeAll(data, packed)
	}
	packed := make([]byte, 1+len(data))
	packed[0] = frameRaw
	copy(packed[1:], data)
	return packed
}

// UnpackMessage strips the framing byte and decompresses when needed.
func UnpackMessage(dec *zstd.Decoder, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("proto: empty wire message")
	}
	switch data[0] {
	case frameRaw:
		return data[1:], nil
	case frameZstd:
		if dec == nil {
			return nil, fmt.Errorf("proto: compressed message without decoder")
		}
		out, err := dec.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("proto: decompress message: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("proto: unknown frame marker 0x%02x", data[0])
	}
}
