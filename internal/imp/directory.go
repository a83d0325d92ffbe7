package imp

import (
	"bufio"
	"fmt"
	"io"

	"github.com/yuanying/bookmeta/internal/container"
)

// RunName returns the directory name of the i-th header run.
func RunName(i int) string {
	return fmt.Sprintf("run/%02d", i)
}

// Directory lists the header runs the layout consumes as raw entries, each
// typed with the field it feeds ("skip" for discarded runs). Scanning stops at
// the end of the container.
func Directory(layout Layout, src io.ReaderAt, size int64) (*container.Directory, error) {
	h, err := ReadHeader(layout, src, size)
	if err != nil {
		return nil, err
	}

	var types []string
	for _, slot := range layout.Slots {
		for range slot.Skip {
			types = append(types, "skip")
		}
		types = append(types, slot.Field.String())
	}

	br := bufio.NewReader(io.NewSectionReader(src, h.FieldsOffset, size-h.FieldsOffset))
	offset := h.FieldsOffset
	var entries []container.Entry
	for i, typ := range types {
		start := offset
		var length int64
		terminated := false
		for {
			b, err := br.ReadByte()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, container.NewFormatError(layout.Format, "unreadable header fields", err)
			}
			offset++
			if b == 0 {
				terminated = true
				break
			}
			length++
		}
		if !terminated && length == 0 {
			break
		}
		entries = append(entries, container.Entry{
			Name:     RunName(i),
			Offset:   start,
			Length:   length,
			Size:     length,
			Encoding: container.EncodingRaw,
			Type:     typ,
		})
		if !terminated {
			break
		}
	}

	return container.NewDirectory(layout.Format, entries, size)
}
