package mobi

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/yuanying/bookmeta/internal/testutil"
)

func TestParsePalmDOCHeader(t *testing.T) {
	rec0 := testutil.Record0{
		Compression:     CompressionPalmDoc,
		TextLength:      12345,
		TextRecordCount: 4,
	}.Bytes()

	h, err := ParsePalmDOCHeader(rec0)
	if err != nil {
		t.Fatalf("ParsePalmDOCHeader failed: %v", err)
	}
	if h.Compression != CompressionPalmDoc {
		t.Errorf("Compression = %d, want %d", h.Compression, CompressionPalmDoc)
	}
	if h.TextLength != 12345 {
		t.Errorf("TextLength = %d, want 12345", h.TextLength)
	}
	if h.TextRecordCount != 4 {
		t.Errorf("TextRecordCount = %d, want 4", h.TextRecordCount)
	}
	if h.RecordSize != 4096 {
		t.Errorf("RecordSize = %d, want 4096", h.RecordSize)
	}

	if _, err := ParsePalmDOCHeader(rec0[:10]); err == nil {
		t.Error("ParsePalmDOCHeader(short) succeeded, want error")
	}
}

func TestParseMOBIHeader(t *testing.T) {
	rec0 := testutil.Record0{
		Encoding:        EncodingUTF8,
		FullName:        "The Full Name",
		FirstImageIndex: 5,
		EXTH:            []testutil.EXTHEntry{testutil.EXTHString(EXTHTitle, "x")},
	}.Bytes()

	h, err := ParseMOBIHeader(rec0)
	if err != nil {
		t.Fatalf("ParseMOBIHeader failed: %v", err)
	}
	if h.HeaderLength != 232 {
		t.Errorf("HeaderLength = %d, want 232", h.HeaderLength)
	}
	if h.TextEncoding != EncodingUTF8 {
		t.Errorf("TextEncoding = %d, want %d", h.TextEncoding, EncodingUTF8)
	}
	if string(h.FullName) != "The Full Name" {
		t.Errorf("FullName = %q, want %q", h.FullName, "The Full Name")
	}
	if h.FirstImageIndex != 5 {
		t.Errorf("FirstImageIndex = %d, want 5", h.FirstImageIndex)
	}
	if !h.HasEXTH() {
		t.Error("HasEXTH() = false, want true")
	}
	if h.EXTHOffset() != 248 {
		t.Errorf("EXTHOffset() = %d, want 248", h.EXTHOffset())
	}
}

func TestParseMOBIHeader_NoMagic(t *testing.T) {
	rec0 := testutil.Record0{}.Bytes()
	copy(rec0[16:20], "TEXT")

	if _, err := ParseMOBIHeader(rec0); !errors.Is(err, ErrNoMOBIHeader) {
		t.Errorf("ParseMOBIHeader() error = %v, want ErrNoMOBIHeader", err)
	}
	if _, err := ParseMOBIHeader(rec0[:18]); !errors.Is(err, ErrNoMOBIHeader) {
		t.Errorf("ParseMOBIHeader(short) error = %v, want ErrNoMOBIHeader", err)
	}
}

func TestParseMOBIHeader_ShortHeaderLength(t *testing.T) {
	rec0 := testutil.Record0{FirstImageIndex: 7, FullName: "Name", EXTH: []testutil.EXTHEntry{}}.Bytes()
	// Declare a header that ends before the full name fields.
	binary.BigEndian.PutUint32(rec0[20:], 70)

	h, err := ParseMOBIHeader(rec0)
	if err != nil {
		t.Fatalf("ParseMOBIHeader failed: %v", err)
	}
	if h.FirstImageIndex != NotSet {
		t.Errorf("FirstImageIndex = %d, want NotSet", h.FirstImageIndex)
	}
	if h.HasEXTH() {
		t.Error("HasEXTH() = true for a header too short to carry the flag")
	}
	if h.FullName != nil {
		t.Errorf("FullName = %q, want nil", h.FullName)
	}
}

func TestParseMOBIHeader_FullNameOutOfBounds(t *testing.T) {
	rec0 := testutil.Record0{FullName: "Name"}.Bytes()
	binary.BigEndian.PutUint32(rec0[88:], 1<<20)

	h, err := ParseMOBIHeader(rec0)
	if err != nil {
		t.Fatalf("ParseMOBIHeader failed: %v", err)
	}
	if h.FullName != nil {
		t.Errorf("FullName = %q, want nil", h.FullName)
	}
}
