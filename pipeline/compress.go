package pipeline

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"

	"github.com/meshline/msgline/cmn"
)

// Compressor is the external collaborator boundary for the compress/
// decompress stages (spec §1 "pure byte-array transformers").
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// LZ4Compressor is the stock compressor, using the teacher's own
// compression codec (transport.lz4Stream wraps the same library).
type LZ4Compressor struct{}

func (LZ4Compressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, cmn.NewErr(cmn.KindCompression, err, "lz4 compress")
	}
	if err := w.Close(); err != nil {
		return nil, cmn.NewErr(cmn.KindCompression, err, "lz4 compress flush")
	}
	return buf.Bytes(), nil
}

func (LZ4Compressor) Decompress(src []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
	if err != nil {
		return nil, cmn.NewErr(cmn.KindCompression, err, "lz4 decompress")
	}
	return out, nil
}

// NopCompressor is the identity transform used when a session has
// compress_mode disabled; it still occupies its stage's slot in the chain
// (spec §4.3 "skipped transforms pass their input unchanged").
type NopCompressor struct{}

func (NopCompressor) Compress(src []byte) ([]byte, error)   { return src, nil }
func (NopCompressor) Decompress(src []byte) ([]byte, error) { return src, nil }
