// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import "math"

const (
	// MinClientIDWidth is the smallest group width of a client id encoding.
	MinClientIDWidth = 1

	// MaxClientIDWidth is the largest group width of a client id encoding.
	MaxClientIDWidth = 7
)

// EncodeVBI returns the variable-width encoding of v using w-bit groups.
func EncodeVBI(v uint64, w int) []byte {
	return AppendVBI(nil, v, w)
}

// AppendVBI appends the variable-width encoding of v to dst and returns the
// extended slice. The value is written big-endian as the minimal number of w-bit
// groups, one group per byte. All bits of the first byte above the group are set,
// so encodings of equal length sort in numeric order. Zero encodes as 0x00.
// w must be between MinClientIDWidth and MaxClientIDWidth.
func AppendVBI(dst []byte, v uint64, w int) []byte {
	if v == 0 {
		return append(dst, 0)
	}

	n := vbiLen(v, w)
	mask := uint64(1)<<w - 1
	for i := n - 1; i >= 0; i-- {
		b := byte((v >> (uint(i) * uint(w))) & mask)
		if i == n-1 {
			b |= vbiMarker(w)
		}
		dst = append(dst, b)
	}

	return dst
}

// DecodeVBI decodes a complete variable-width encoding made with group width w.
// Every byte of b is consumed; trailing bytes are an error rather than ignored.
func DecodeVBI(b []byte, w int) (uint64, error) {
	if w < MinClientIDWidth || w > MaxClientIDWidth {
		return 0, ErrInvalidClientWidth
	}

	if len(b) == 0 {
		return 0, ErrInvalidVBI
	}

	if len(b) == 1 && b[0] == 0 {
		return 0, nil
	}

	marker := vbiMarker(w)
	if b[0]&marker != marker || b[0]&^marker == 0 {
		return 0, ErrInvalidVBI // unmarked or not minimal
	}

	v := uint64(b[0] &^ marker)
	for _, c := range b[1:] {
		if c&marker != 0 {
			return 0, ErrInvalidVBI
		}

		if v > math.MaxUint64>>uint(w) {
			return 0, ErrInvalidVBI // overflow
		}

		v = v<<uint(w) | uint64(c)
	}

	return v, nil
}

// vbiMarker returns the bits of the first byte which sit above a w-bit group.
func vbiMarker(w int) byte {
	return ^byte(0) << uint(w)
}

// vbiLen returns the number of w-bit groups needed to hold a non-zero v.
func vbiLen(v uint64, w int) int {
	n := 0
	for ; v > 0; v >>= uint(w) {
		n++
	}
	return n
}
