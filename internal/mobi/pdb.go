package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/yuanying/bookmeta/internal/container"
)

// Format is the format name reported for Palm database containers.
const Format = "pdb"

const (
	// HeaderSize is the size of the fixed Palm Database header.
	HeaderSize = 78
	// RecordEntrySize is the size of one record list entry.
	RecordEntrySize = 8
)

// Kind identifies the flavour of book a Palm database holds, by its
// type/creator pair.
type Kind string

const (
	KindMOBI    Kind = "BOOKMOBI"
	KindPalmDOC Kind = "TEXtREAd"
	KindEReader Kind = "PNRdPPrs"
)

// PDBHeader represents the fixed 78-byte Palm Database header.
// All fields are encoded in big-endian order.
type PDBHeader struct {
	Name               [32]byte // Database name (31 bytes max, NULL padded)
	Attributes         uint16
	Version            uint16
	CreationDate       uint32
	ModificationDate   uint32
	BackupDate         uint32
	ModificationNumber uint32
	AppInfoOffset      uint32
	SortInfoOffset     uint32
	Type               [4]byte // "BOOK"
	Creator            [4]byte // "MOBI"
	UniqueSeed         uint32
	NextRecordList     uint32
	NumRecords         uint16
}

// Kind returns the type/creator pair.
func (h *PDBHeader) Kind() Kind {
	return Kind(string(h.Type[:]) + string(h.Creator[:]))
}

// DatabaseName returns the NUL-trimmed database name.
func (h *PDBHeader) DatabaseName() string {
	name := h.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// RecordName returns the directory name of record i.
func RecordName(i int) string {
	return fmt.Sprintf("record/%04d", i)
}

// PDB is a validated Palm database: its header and a directory of records.
type PDB struct {
	Header PDBHeader
	Dir    *container.Directory
}

// ReadPDB validates the header and turns the record list into a directory.
// Record lengths are the gaps between consecutive offsets.
func ReadPDB(src io.ReaderAt, size int64) (*PDB, error) {
	if size < HeaderSize {
		return nil, container.NewFormatError(Format, fmt.Sprintf("header truncated at %d bytes", size), nil)
	}

	var h PDBHeader
	if err := binary.Read(io.NewSectionReader(src, 0, HeaderSize), binary.BigEndian, &h); err != nil {
		return nil, container.NewFormatError(Format, "unreadable header", err)
	}

	if !isKnownKind(h.Kind()) {
		return nil, container.NewFormatError(Format, fmt.Sprintf("unsupported type/creator %q", h.Kind()), nil)
	}

	count := int64(h.NumRecords)
	if count == 0 {
		return nil, container.NewFormatError(Format, "database has no records", nil)
	}
	listEnd := HeaderSize + count*RecordEntrySize
	if listEnd > size {
		return nil, container.NewFormatError(Format, fmt.Sprintf("record list of %d entries exceeds container size %d", count, size), nil)
	}

	list := make([]byte, count*RecordEntrySize)
	if _, err := src.ReadAt(list, HeaderSize); err != nil && err != io.EOF {
		return nil, container.NewFormatError(Format, "unreadable record list", err)
	}

	offsets := make([]int64, count)
	for i := range offsets {
		offsets[i] = int64(binary.BigEndian.Uint32(list[i*RecordEntrySize:]))
		if offsets[i] < listEnd {
			return nil, container.NewFormatError(Format, fmt.Sprintf("record %d offset %d inside header", i, offsets[i]), nil)
		}
		if i > 0 && offsets[i] < offsets[i-1] {
			return nil, container.NewFormatError(Format, fmt.Sprintf("record %d offset %d precedes record %d", i, offsets[i], i-1), nil)
		}
	}

	entries := make([]container.Entry, count)
	for i, off := range offsets {
		end := size
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		entries[i] = container.Entry{
			Name:     RecordName(i),
			Offset:   off,
			Length:   max(end-off, 0),
			Encoding: container.EncodingRaw,
		}
	}

	dir, err := container.NewDirectory(Format, entries, size)
	if err != nil {
		return nil, err
	}

	return &PDB{Header: h, Dir: dir}, nil
}

// WithTextEncoding returns a copy of the directory in which text records
// 1..count carry the given encoding.
func (p *PDB) WithTextEncoding(count int, encoding string) (*container.Directory, error) {
	entries := p.Dir.Entries()
	text := make(map[string]bool, count)
	for r := 1; r <= count; r++ {
		text[RecordName(r)] = true
	}
	for i := range entries {
		if text[entries[i].Name] {
			entries[i].Encoding = encoding
			entries[i].Type = "text"
		}
	}
	return container.NewDirectory(Format, entries, p.Dir.Size())
}

func isKnownKind(k Kind) bool {
	switch k {
	case KindMOBI, KindPalmDOC, KindEReader:
		return true
	default:
		return false
	}
}
