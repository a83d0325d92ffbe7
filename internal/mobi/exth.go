package mobi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// EXTH record types read for metadata.
const (
	EXTHAuthor      uint32 = 100
	EXTHPublisher   uint32 = 101
	EXTHDescription uint32 = 103
	EXTHISBN        uint32 = 104
	EXTHSubject     uint32 = 105
	EXTHDate        uint32 = 106
	EXTHCoverOffset uint32 = 201
	EXTHThumbOffset uint32 = 202
	EXTHTitle       uint32 = 503
	EXTHLanguage    uint32 = 524
)

var ErrBadEXTH = errors.New("malformed EXTH block")

// EXTHRecord represents a single EXTH metadata record.
type EXTHRecord struct {
	Type uint32
	Data []byte
}

// EXTHHeader represents the EXTH header containing metadata records.
type EXTHHeader struct {
	Records []EXTHRecord
}

// ParseEXTH reads the EXTH block at the start of data.
// Format: "EXTH"(4) + headerLength(4) + recordCount(4) + records + padding
// Records that would run past the block are rejected.
func ParseEXTH(data []byte) (*EXTHHeader, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], []byte("EXTH")) {
		return nil, fmt.Errorf("%w: missing identifier", ErrBadEXTH)
	}

	length := binary.BigEndian.Uint32(data[4:])
	count := binary.BigEndian.Uint32(data[8:])
	if length < 12 || uint64(length) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: header length %d, %d bytes available", ErrBadEXTH, length, len(data))
	}
	block := data[:length]

	h := &EXTHHeader{}
	pos := 12
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(block) {
			return h, fmt.Errorf("%w: record %d of %d truncated", ErrBadEXTH, i, count)
		}
		recType := binary.BigEndian.Uint32(block[pos:])
		recLen := binary.BigEndian.Uint32(block[pos+4:])
		if recLen < 8 || uint64(pos)+uint64(recLen) > uint64(len(block)) {
			return h, fmt.Errorf("%w: record %d length %d", ErrBadEXTH, i, recLen)
		}
		h.Records = append(h.Records, EXTHRecord{
			Type: recType,
			Data: block[pos+8 : pos+int(recLen)],
		})
		pos += int(recLen)
	}

	return h, nil
}

// Strings returns the data of every record of the given type.
func (h *EXTHHeader) Strings(recordType uint32) [][]byte {
	var out [][]byte
	for _, rec := range h.Records {
		if rec.Type == recordType {
			out = append(out, rec.Data)
		}
	}
	return out
}

// First returns the data of the first record of the given type.
func (h *EXTHHeader) First(recordType uint32) ([]byte, bool) {
	for _, rec := range h.Records {
		if rec.Type == recordType {
			return rec.Data, true
		}
	}
	return nil, false
}

// Uint32 decodes the first record of the given type as a big-endian uint32.
func (h *EXTHHeader) Uint32(recordType uint32) (uint32, bool) {
	data, ok := h.First(recordType)
	if !ok || len(data) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data), true
}
