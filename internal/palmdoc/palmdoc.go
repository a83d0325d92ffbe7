// Package palmdoc implements the LZ77 variant used for PalmDOC and MOBI text
// records.
package palmdoc

import (
	"errors"
	"fmt"
)

// RecordSize is the conventional uncompressed size of one text record.
const RecordSize = 4096

var (
	ErrCorrupt       = errors.New("palmdoc: corrupt stream")
	ErrOutputTooLong = errors.New("palmdoc: output exceeds limit")
)

// Decompress expands a PalmDoc-compressed record. A limit greater than zero
// caps the decoded size; exceeding it returns ErrOutputTooLong.
func Decompress(data []byte, limit int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out := make([]byte, 0, min(len(data)*2, capHint(limit)))
	grow := func(n int) error {
		if limit > 0 && len(out)+n > limit {
			return fmt.Errorf("%w: %d bytes", ErrOutputTooLong, limit)
		}
		return nil
	}

	i := 0
	for i < len(data) {
		b := data[i]
		i++

		switch {
		case b == 0x00 || (b >= 0x09 && b <= 0x7F):
			if err := grow(1); err != nil {
				return nil, err
			}
			out = append(out, b)

		case b <= 0x08:
			// next b bytes are copied verbatim
			count := int(b)
			if i+count > len(data) {
				return nil, fmt.Errorf("%w: literal run overflows at offset %d", ErrCorrupt, i-1)
			}
			if err := grow(count); err != nil {
				return nil, err
			}
			out = append(out, data[i:i+count]...)
			i += count

		case b <= 0xBF:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: back reference truncated at offset %d", ErrCorrupt, i-1)
			}
			low := data[i]
			i++

			distance := (int(b&0x3F) << 5) | int(low>>3)
			length := int(low&0x07) + 3
			if distance == 0 || distance > len(out) {
				return nil, fmt.Errorf("%w: back reference distance %d at output offset %d", ErrCorrupt, distance, len(out))
			}
			if err := grow(length); err != nil {
				return nil, err
			}

			start := len(out) - distance
			for j := range length {
				out = append(out, out[start+j])
			}

		default:
			if err := grow(2); err != nil {
				return nil, err
			}
			out = append(out, ' ', b^0x80)
		}
	}

	return out, nil
}

func capHint(limit int) int {
	if limit <= 0 {
		return 1 << 20
	}
	return limit
}

// Compress applies PalmDoc compression. The encoder is greedy and favours
// simplicity over ratio.
func Compress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	out := make([]byte, 0, len(data))
	i := 0

	for i < len(data) {
		if length, dist := findMatch(data, i); length >= 3 {
			out = append(out, byte(0x80|(dist>>5)), byte(((dist&0x1F)<<3)|(length-3)))
			i += length
			continue
		}

		if spaceChar(data, i) {
			out = append(out, data[i+1]^0x80)
			i += 2
			continue
		}

		if isLiteral(data[i]) {
			out = append(out, data[i])
			i++
			continue
		}

		// 0x01-0x08 and 0x80-0xFF travel in counted runs of up to 8 bytes
		start := i
		for i < len(data) && i-start < 8 {
			if isLiteral(data[i]) || spaceChar(data, i) {
				break
			}
			if length, _ := findMatch(data, i); length >= 3 {
				break
			}
			i++
		}
		out = append(out, byte(i-start))
		out = append(out, data[start:i]...)
	}

	return out
}

func isLiteral(b byte) bool {
	return b == 0x00 || (b >= 0x09 && b <= 0x7F)
}

func spaceChar(data []byte, i int) bool {
	return data[i] == ' ' && i+1 < len(data) && data[i+1] >= 0x40 && data[i+1] <= 0x7F
}

// findMatch returns the longest back reference (length, distance) for pos,
// with length in [3, 10] and distance in [1, 2047], or (0, 0).
func findMatch(data []byte, pos int) (int, int) {
	if pos+3 > len(data) {
		return 0, 0
	}

	maxDist := min(2047, pos)
	maxLen := min(10, len(data)-pos)

	bestLen, bestDist := 0, 0
	for dist := 1; dist <= maxDist; dist++ {
		start := pos - dist
		n := 0
		for n < maxLen && data[start+n] == data[pos+n] {
			n++
		}
		if n >= 3 && n > bestLen {
			bestLen, bestDist = n, dist
			if n == maxLen {
				break
			}
		}
	}

	return bestLen, bestDist
}
