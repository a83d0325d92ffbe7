package container

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/yuanying/bookmeta/internal/palmdoc"
)

// DefaultMaxEntrySize bounds the decoded size of a single entry.
const DefaultMaxEntrySize = 32 << 20

// Decoder materializes entry payloads. It is safe for concurrent use.
type Decoder struct {
	maxSize int64
	zstd    sync.Pool
}

// NewDecoder returns a Decoder capping decoded entries at maxSize bytes.
// A maxSize of zero or less selects DefaultMaxEntrySize.
func NewDecoder(maxSize int64) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntrySize
	}
	return &Decoder{maxSize: maxSize}
}

// MaxSize returns the decoded size limit.
func (d *Decoder) MaxSize() int64 { return d.maxSize }

// Decode reads e from src and applies its encoding. The entry range is
// validated against dir before any byte is read.
func (d *Decoder) Decode(dir *Directory, src io.ReaderAt, e Entry) ([]byte, error) {
	if err := dir.CheckRange(e); err != nil {
		return nil, err
	}
	if e.Size > d.maxSize {
		return nil, &DecodeError{Entry: e.Name, Err: fmt.Errorf("%w: declared %d bytes, limit %d", ErrEntryTooLarge, e.Size, d.maxSize)}
	}

	section := io.NewSectionReader(src, e.Offset, e.Length)

	var (
		out []byte
		err error
	)
	switch e.Encoding {
	case EncodingRaw, "":
		out, err = d.readStored(section, e.Length)
	case EncodingDeflate:
		fr := flate.NewReader(section)
		out, err = d.readLimited(fr)
		if cerr := fr.Close(); err == nil && cerr != nil {
			err = cerr
		}
	case EncodingZstd:
		out, err = d.decodeZstd(section)
	case EncodingPalmDoc:
		var stored []byte
		stored, err = d.readStored(section, e.Length)
		if err == nil {
			out, err = palmdoc.Decompress(stored, int(d.maxSize))
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEncoding, e.Encoding)
	}
	if err != nil {
		return nil, &DecodeError{Entry: e.Name, Err: err}
	}

	return out, nil
}

func (d *Decoder) readStored(r io.Reader, length int64) ([]byte, error) {
	if length > d.maxSize {
		return nil, fmt.Errorf("%w: stored %d bytes, limit %d", ErrEntryTooLarge, length, d.maxSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read stored bytes: %w", err)
	}
	return buf, nil
}

// readLimited drains r, failing once more than maxSize bytes are produced.
func (d *Decoder) readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, d.maxSize+1))
	if err != nil {
		return nil, err
	}
	if n > d.maxSize {
		return nil, fmt.Errorf("%w: limit %d", ErrEntryTooLarge, d.maxSize)
	}
	return buf.Bytes(), nil
}

func (d *Decoder) decodeZstd(r io.Reader) ([]byte, error) {
	dec, release, err := d.zstdDecoder(r)
	if err != nil {
		return nil, err
	}
	defer release()
	return d.readLimited(dec)
}

// zstdDecoder returns a pooled decoder reading from r and the function that
// hands it back.
func (d *Decoder) zstdDecoder(r io.Reader) (*zstd.Decoder, func(), error) {
	if v, ok := d.zstd.Get().(*zstd.Decoder); ok {
		if err := v.Reset(r); err == nil {
			return v, func() {
				_ = v.Reset(nil)
				d.zstd.Put(v)
			}, nil
		}
		v.Close()
	}

	dec, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(d.maxSize)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec, func() {
		_ = dec.Reset(nil)
		d.zstd.Put(dec)
	}, nil
}
