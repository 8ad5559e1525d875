package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"
)

// CompressThreshold is the uncompressed payload size at or below which
// compression is skipped even when the policy requests it (spec §4.1).
const CompressThreshold = 128

// Compress deflates payload and prepends its uncompressed size, producing
// the body of a COMPRESSED_MESSAGE frame (spec §6: [size:u64be][deflate]).
func Compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint64(len(payload))); err != nil {
		return nil, err
	}

	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress: reads the prefixed uncompressed size,
// pre-sizes the output buffer, and inflates the remainder.
func Decompress(body []byte) ([]byte, error) {
	if len(body) < 8 {
		return nil, io.ErrUnexpectedEOF
	}
	size := binary.BigEndian.Uint64(body[:8])

	r := flate.NewReader(bytes.NewReader(body[8:]))
	defer r.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
