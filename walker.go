// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Walker decodes directory records one at a time from a working stream.
//
// The walk starts at imageOffset+DirOffset and ends at the first of:
// a regular file whose payload ends fewer than 8 bytes before the end of the
// stream, the directory end imageOffset+HdrDirSize (when HdrDirSize exceeds
// DirOffset), a clean end of stream on a record boundary, or an error.
type Walker struct {
	ra          io.ReaderAt
	size        int64
	imageOffset int64
	order       binary.ByteOrder
	start       int64
	end         int64
	pos         int64
	done        bool
	attrBuf     [AttrSize]byte
}

// NewWalker returns a walker over the directory of the image header hdr
// located at imageOffset in ra, whose total length is size.
func NewWalker(ra io.ReaderAt, size, imageOffset int64, hdr ImageHeader) *Walker {
	start := imageOffset + int64(hdr.DirOffset)
	end := size
	if hdr.HdrDirSize > hdr.DirOffset {
		end = min(size, imageOffset+int64(hdr.HdrDirSize))
	}

	return &Walker{
		ra:          ra,
		size:        size,
		imageOffset: imageOffset,
		order:       hdr.ByteOrder(),
		start:       start,
		end:         end,
		pos:         start,
	}
}

// Offset returns the absolute offset of the next record.
func (w *Walker) Offset() int64 { return w.pos }

// Reset rewinds the walker to the first record.
func (w *Walker) Reset() {
	w.pos = w.start
	w.done = false
}

// Next decodes the next record. It returns io.EOF when the walk is over.
// Any other error is final; later calls return io.EOF.
func (w *Walker) Next() (Record, error) {
	if w.ra == nil {
		return Record{}, ErrNilReader
	}

	if w.done || w.pos >= w.end {
		w.done = true
		return Record{}, io.EOF
	}

	recOff := w.pos
	n, err := w.ra.ReadAt(w.attrBuf[:], recOff)
	if n == 0 && errors.Is(err, io.EOF) {
		w.done = true
		return Record{}, io.EOF
	}

	if n < AttrSize {
		w.done = true
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, fmt.Errorf("read dirent at 0x%x: %w", recOff, err)
		}
		return Record{}, fmt.Errorf("%w: attr at 0x%x has %d of %d bytes", ErrTruncatedDirent, recOff, n, AttrSize)
	}

	attr := decodeAttr(w.attrBuf[:], w.order)
	if attr.Size < AttrSize {
		w.done = true
		return Record{}, fmt.Errorf("%w: record size %d at 0x%x is smaller than attr", ErrInvalidDirent, attr.Size, recOff)
	}

	payload := make([]byte, int(attr.Size)-AttrSize)
	if len(payload) > 0 {
		n, err := w.ra.ReadAt(payload, recOff+AttrSize)
		if n < len(payload) {
			w.done = true
			if err != nil && !errors.Is(err, io.EOF) {
				return Record{}, fmt.Errorf("read dirent at 0x%x: %w", recOff, err)
			}
			return Record{}, fmt.Errorf("%w: payload at 0x%x has %d of %d bytes", ErrTruncatedDirent, recOff, n, len(payload))
		}
	}

	rec, err := parseRecord(attr, payload, w.order)
	if err != nil {
		w.done = true
		return Record{}, fmt.Errorf("dirent at 0x%x: %w", recOff, err)
	}

	rec.Offset = recOff
	w.pos = recOff + int64(attr.Size)

	if rec.Kind == KindFile {
		fileEnd := w.imageOffset + int64(rec.File.Offset) + int64(rec.File.Size)
		if w.size-fileEnd < fileEndSlack {
			w.done = true
		}
	}

	return rec, nil
}

// All yields every remaining record. Iteration stops after the first error.
func (w *Walker) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := w.Next()
			if errors.Is(err, io.EOF) {
				return
			}

			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Collect walks all remaining records into a slice.
func (w *Walker) Collect() ([]Record, error) {
	var out []Record
	for rec, err := range w.All() {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}

	return out, nil
}
