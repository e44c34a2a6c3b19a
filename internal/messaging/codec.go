package messaging

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	// PropertyContentEncoding marks a message body as compressed
	PropertyContentEncoding = "content_encoding"
	encodingZstd            = "zstd"
)

// Encoder and decoder are safe for concurrent EncodeAll / DecodeAll.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

// compress replaces msg.Body with its zstd encoding when the body is
// larger than threshold. A non-positive threshold disables compression.
func compress(msg *Message, threshold int) error {
	if threshold <= 0 || len(msg.Body) <= threshold {
		return nil
	}
	enc, err := zstdEncoder()
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	msg.Body = enc.EncodeAll(msg.Body, make([]byte, 0, len(msg.Body)/2))
	msg.Properties[PropertyContentEncoding] = encodingZstd
	return nil
}

// decompress restores a body written by compress. Messages without the
// encoding property are left alone.
func decompress(msg *Message) error {
	encoding, _ := msg.Properties[PropertyContentEncoding].(string)
	switch encoding {
	case "":
		return nil
	case encodingZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return fmt.Errorf("zstd decoder: %w", err)
		}
		body, err := dec.DecodeAll(msg.Body, nil)
		if err != nil {
			return fmt.Errorf("decompress message %s: %w", msg.ID, err)
		}
		msg.Body = body
		delete(msg.Properties, PropertyContentEncoding)
		return nil
	default:
		return fmt.Errorf("message %s: unsupported content encoding %q", msg.ID, encoding)
	}
}
