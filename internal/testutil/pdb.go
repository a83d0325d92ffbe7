package testutil

import (
	"bytes"
	"encoding/binary"
)

// PDB lays out a Palm database: the 78-byte header, the record list, two
// padding bytes and the records back to back.
func PDB(name, kind string, records [][]byte) []byte {
	var buf bytes.Buffer

	var header [78]byte
	copy(header[:31], name)
	copy(header[60:68], kind)
	binary.BigEndian.PutUint16(header[76:], uint16(len(records)))
	buf.Write(header[:])

	offset := uint32(78 + 8*len(records) + 2)
	for i, rec := range records {
		var entry [8]byte
		binary.BigEndian.PutUint32(entry[0:], offset)
		binary.BigEndian.PutUint32(entry[4:], uint32(2*i))
		buf.Write(entry[:])
		offset += uint32(len(rec))
	}
	buf.Write([]byte{0, 0})

	for _, rec := range records {
		buf.Write(rec)
	}
	return buf.Bytes()
}

// EXTHEntry is one EXTH record.
type EXTHEntry struct {
	Type uint32
	Data []byte
}

// EXTHUint32 builds an EXTH record holding a big-endian integer.
func EXTHUint32(recordType, v uint32) EXTHEntry {
	return EXTHEntry{Type: recordType, Data: binary.BigEndian.AppendUint32(nil, v)}
}

// EXTHString builds an EXTH record holding text.
func EXTHString(recordType uint32, s string) EXTHEntry {
	return EXTHEntry{Type: recordType, Data: []byte(s)}
}

// Record0 describes the first record of a MOBI book.
type Record0 struct {
	Compression     uint16
	TextRecordCount uint16
	TextLength      uint32
	Encoding        uint32 // 65001 or 1252
	FullName        string
	FirstImageIndex uint32
	Locale          uint32
	EXTH            []EXTHEntry // nil omits the EXTH block and clears the flag
}

const mobiHeaderLength = 232

// Bytes serializes the PalmDOC header, the MOBI header, the EXTH block and
// the full name, in that order.
func (r Record0) Bytes() []byte {
	var buf bytes.Buffer

	palm := make([]byte, 16)
	binary.BigEndian.PutUint16(palm[0:], r.Compression)
	binary.BigEndian.PutUint32(palm[4:], r.TextLength)
	binary.BigEndian.PutUint16(palm[8:], r.TextRecordCount)
	binary.BigEndian.PutUint16(palm[10:], 4096)
	buf.Write(palm)

	exth := r.exthBytes()
	nameOffset := 16 + mobiHeaderLength + len(exth)

	mobi := make([]byte, mobiHeaderLength)
	copy(mobi[0:4], "MOBI")
	binary.BigEndian.PutUint32(mobi[4:], mobiHeaderLength)
	binary.BigEndian.PutUint32(mobi[8:], 2)
	binary.BigEndian.PutUint32(mobi[12:], r.Encoding)
	binary.BigEndian.PutUint32(mobi[68:], uint32(nameOffset))
	binary.BigEndian.PutUint32(mobi[72:], uint32(len(r.FullName)))
	binary.BigEndian.PutUint32(mobi[76:], r.Locale)
	binary.BigEndian.PutUint32(mobi[92:], r.FirstImageIndex)
	if r.EXTH != nil {
		binary.BigEndian.PutUint32(mobi[112:], 0x40)
	}
	buf.Write(mobi)

	buf.Write(exth)
	buf.WriteString(r.FullName)
	buf.Write([]byte{0, 0})
	return buf.Bytes()
}

func (r Record0) exthBytes() []byte {
	if r.EXTH == nil {
		return nil
	}
	var body bytes.Buffer
	for _, e := range r.EXTH {
		_ = binary.Write(&body, binary.BigEndian, e.Type)
		_ = binary.Write(&body, binary.BigEndian, uint32(8+len(e.Data)))
		body.Write(e.Data)
	}

	var out bytes.Buffer
	out.WriteString("EXTH")
	_ = binary.Write(&out, binary.BigEndian, uint32(12+body.Len()))
	_ = binary.Write(&out, binary.BigEndian, uint32(len(r.EXTH)))
	out.Write(body.Bytes())
	for out.Len()%4 != 0 {
		out.WriteByte(0)
	}
	return out.Bytes()
}
