package tsvc

import (
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("record-identifier-batch-payload"), 64)

	for _, codec := range []Codec{CodecNone, CodecZstd, CodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			encoded, err := EncodeBatchPayload(codec, raw)
			if err != nil {
				t.Fatalf("EncodeBatchPayload: %v", err)
			}
			decoded, err := DecodeBatchPayload(codec, encoded)
			if err != nil {
				t.Fatalf("DecodeBatchPayload: %v", err)
			}
			if !bytes.Equal(decoded, raw) {
				t.Fatalf("round trip mismatch for codec %v", codec)
			}
		})
	}
}

func TestCodecUnknownRejected(t *testing.T) {
	if _, err := EncodeBatchPayload(Codec(99), []byte("x")); err == nil {
		t.Fatal("expected error for unknown codec")
	}
	if _, err := DecodeBatchPayload(Codec(99), []byte("x")); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}
