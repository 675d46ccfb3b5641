package tsvc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec is the selectable compression scheme for a record-identifier batch
// payload (spec §3 "Record-Identifier Batch") when it must travel as part
// of a message buffer shipped cross-node — a proxied batch-direct request,
// or a scan/query whose id list a peer requested. This mirrors the
// retrieved record_and_fetch.go's RecordAttrs.CompressionType() (gzip /
// snappy / lz4 / zstd), narrowed to the two codecs this module's go.mod
// actually carries.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// EncodeBatchPayload compresses raw (an already-serialized record-identifier
// batch) with the requested codec.
func EncodeBatchPayload(codec Codec, raw []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return raw, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("tsvc: new zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("tsvc: lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("tsvc: lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("tsvc: unknown codec %d", codec)
	}
}

// DecodeBatchPayload reverses EncodeBatchPayload.
func DecodeBatchPayload(codec Codec, compressed []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return compressed, nil
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("tsvc: new zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("tsvc: zstd decode: %w", err)
		}
		return out, nil
	case CodecLZ4:
		r := lz4.NewReader(bytes.NewReader(compressed))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("tsvc: lz4 read: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tsvc: unknown codec %d", codec)
	}
}
