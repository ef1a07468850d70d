package crypto

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/distfs/coordinator/pkg/errors"
)

func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, errors.NewCrypto("failed to initialize compressor").WithCause(err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.NewCrypto("failed to compress payload").WithCause(err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.NewCrypto("failed to flush compressor").WithCause(err)
	}
	return buf.Bytes(), nil
}

func inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewCorruption("failed to decompress payload").WithCause(err)
	}
	return out, nil
}
