// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ScanWindowSize is the window Scan reads at once. Consecutive windows
// overlap by one byte less than the pattern length, so a match spanning a
// window boundary is still found.
const ScanWindowSize = 4 * 1024 * 1024

// patternByte accepts any byte in [lo, hi].
type patternByte struct {
	lo, hi byte
}

// Pattern is a fixed-length byte pattern with literal, ranged and wildcard positions.
type Pattern struct {
	name  string
	bytes []patternByte
}

// NewPattern returns an empty pattern with a diagnostic name.
func NewPattern(name string) *Pattern { return &Pattern{name: name} }

// Literal appends exact bytes.
func (p *Pattern) Literal(b ...byte) *Pattern {
	for _, c := range b {
		p.bytes = append(p.bytes, patternByte{lo: c, hi: c})
	}

	return p
}

// Any appends n wildcard positions.
func (p *Pattern) Any(n int) *Pattern {
	for range n {
		p.bytes = append(p.bytes, patternByte{lo: 0x00, hi: 0xff})
	}

	return p
}

// Range appends one position accepting bytes lo..hi inclusive.
func (p *Pattern) Range(lo, hi byte) *Pattern {
	p.bytes = append(p.bytes, patternByte{lo: lo, hi: hi})
	return p
}

// Len returns the pattern length in bytes.
func (p *Pattern) Len() int { return len(p.bytes) }

// String returns the pattern name.
func (p *Pattern) String() string { return p.name }

// Index returns the first offset in buf where the whole pattern matches, or -1.
func (p *Pattern) Index(buf []byte) int {
	n := len(p.bytes)
	if n == 0 {
		return 0
	}

	last := len(buf) - n
	first := p.bytes[0]
	for i := 0; i <= last; i++ {
		if first.lo == first.hi {
			j := bytes.IndexByte(buf[i:last+1], first.lo)
			if j < 0 {
				return -1
			}
			i += j
		}

		if p.matchAt(buf, i) {
			return i
		}
	}

	return -1
}

func (p *Pattern) matchAt(buf []byte, at int) bool {
	for k, pb := range p.bytes {
		c := buf[at+k]
		if c < pb.lo || c > pb.hi {
			return false
		}
	}

	return true
}

var (
	// StartupSignature matches a startup header: magic, 46 arbitrary bytes,
	// then the 14 zero bytes of zero0 and zero[3].
	StartupSignature = NewPattern("startup header").
				Literal(0xeb, 0x7e, 0xff, 0x00).
				Any(46).
				Literal(make([]byte, 14)...)

	// ImageSignature matches an image header: "imagefs" and a flags byte with only the low three bits.
	ImageSignature = NewPattern("image header").
			Literal([]byte("imagefs")...).
			Range(0x00, 0x07)
)

// Scan returns the absolute offset of the first match of p in ra at or after
// start, reading ScanWindowSize bytes at a time. It returns ErrPatternNotFound
// when the range holds no match.
func Scan(ra io.ReaderAt, size, start int64, p *Pattern) (int64, error) {
	return scanWindowed(ra, size, start, p, ScanWindowSize)
}

// scanWindowed is Scan with an explicit window size.
func scanWindowed(ra io.ReaderAt, size, start int64, p *Pattern, window int) (int64, error) {
	if ra == nil {
		return -1, ErrNilReader
	}

	n := p.Len()
	if window < n {
		window = n
	}

	if start < 0 {
		start = 0
	}

	if size-start < int64(n) || n == 0 {
		return -1, fmt.Errorf("%w: %s from 0x%x", ErrPatternNotFound, p, start)
	}

	buf := make([]byte, min(int64(window), size-start))
	overlap := n - 1
	for off := start; off < size; {
		want := min(int64(len(buf)), size-off)
		got, err := ra.ReadAt(buf[:want], off)
		if err != nil && !errors.Is(err, io.EOF) {
			return -1, fmt.Errorf("scan %s at 0x%x: %w", p, off, err)
		}

		if got < n {
			break
		}

		if i := p.Index(buf[:got]); i >= 0 {
			return off + int64(i), nil
		}

		if off+int64(got) >= size || got < int(want) {
			break
		}

		off += int64(got - overlap)
	}

	return -1, fmt.Errorf("%w: %s from 0x%x", ErrPatternNotFound, p, start)
}
