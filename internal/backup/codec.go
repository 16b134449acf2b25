package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Compression selects how artifacts are stored.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

const (
	extJSON = ".json"
	extZstd = ".json.zst"
)

// Codec encodes snapshots as indented JSON, optionally zstd-compressed.
type Codec struct {
	compression Compression
}

// NewCodec returns a codec for the given compression. An empty value
// means CompressionNone.
func NewCodec(c Compression) (Codec, error) {
	switch c {
	case "", CompressionNone:
		return Codec{compression: CompressionNone}, nil
	case CompressionZstd:
		return Codec{compression: CompressionZstd}, nil
	default:
		return Codec{}, fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, c)
	}
}

// Extension returns the artifact file extension for this codec.
func (c Codec) Extension() string {
	if c.compression == CompressionZstd {
		return extZstd
	}
	return extJSON
}

// Encode serializes a snapshot. Section text is written as fetched:
// <, > and & are not escaped, so Decode returns identical bytes.
func (c Codec) Encode(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if c.compression != CompressionZstd {
		return data, nil
	}

	zenc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer zenc.Close()
	return zenc.EncodeAll(data, nil), nil
}

// Decode parses an artifact, choosing decompression by the artifact name.
// Sections come back in compact form.
func Decode(name string, data []byte) (Snapshot, error) {
	if strings.HasSuffix(name, extZstd) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()

		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to decompress %s: %w", name, err)
		}
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	for key, raw := range s.Sections {
		compact, err := compactSection(raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("section %s of %s: %w", key, name, err)
		}
		s.Sections[key] = compact
	}
	return s, nil
}
