package metadata

import (
	"bytes"
	"sort"
	"strings"
)

// StandardSuffix marks the full-size variant of a cover type, as in
// "other.ms-coverimage" / "other.ms-coverimage-standard".
const StandardSuffix = "-standard"

// CoverCandidate is one embedded image that may serve as the cover.
type CoverCandidate struct {
	Data []byte
	Type string // declared type, e.g. a guide reference type
	Path string // internal path the data was read from
}

// IsCoverType reports whether a declared type names a cover, ignoring case.
func IsCoverType(t string) bool {
	return strings.Contains(strings.ToLower(t), "cover")
}

// SelectCover picks the cover from candidates. Candidates are ranked by data
// size, larger first, with the longer internal path breaking ties. When the
// runner-up is the "-standard" variant of the leader's type, the runner-up
// wins. Empty candidates are ignored.
func SelectCover(candidates []CoverCandidate) (*Cover, bool) {
	ranked := make([]CoverCandidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Data) > 0 {
			ranked = append(ranked, c)
		}
	}
	if len(ranked) == 0 {
		return nil, false
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if len(ranked[i].Data) != len(ranked[j].Data) {
			return len(ranked[i].Data) > len(ranked[j].Data)
		}
		return len(ranked[i].Path) > len(ranked[j].Path)
	})

	idx := 0
	if len(ranked) > 1 && ranked[1].Type == ranked[0].Type+StandardSuffix {
		idx = 1
	}

	chosen := ranked[idx]
	return &Cover{Format: DetectImageFormat(chosen.Data), Data: chosen.Data}, true
}

// DetectImageFormat identifies an image by its magic bytes.
func DetectImageFormat(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return "bmp"
	default:
		return "raw"
	}
}
