// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"errors"
	"fmt"
	"io"
)

// ErrRecordNotFound means no record matches the requested path.
var ErrRecordNotFound = errors.New("record not found")

// nopCloser wraps a reader and provides a no-op close.
type nopCloser struct {
	io.Reader
}

// Close closes nopCloser (no-op).
func (nopCloser) Close() error {
	return nil
}

// Lookup walks the directory and returns the first record with the given path.
func (r *Reader) Lookup(name string) (Record, error) {
	if err := r.checkOpen(); err != nil {
		return Record{}, err
	}

	lookupName := NormalizePath(name)
	for rec, err := range r.Walker().All() {
		if err != nil {
			return Record{}, err
		}

		if NormalizePath(rec.Path) == lookupName {
			return rec, nil
		}
	}

	return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, name)
}

// OpenFile opens the payload of a regular file record.
func (r *Reader) OpenFile(rec Record) (io.ReadCloser, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	if rec.Kind != KindFile || rec.File == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotAFile, rec.Path, rec.Kind)
	}

	start := r.imageOffset + int64(rec.File.Offset)
	size := int64(rec.File.Size)
	if start+size > r.workSize {
		return nil, fmt.Errorf(
			"%w: file %s range 0x%x+0x%x exceeds stream size 0x%x",
			ErrInvalidFormat, rec.Path, start, size, r.workSize,
		)
	}

	return nopCloser{Reader: io.NewSectionReader(r.work, start, size)}, nil
}

// ReadFile reads the full payload of a regular file record.
func (r *Reader) ReadFile(rec Record) ([]byte, error) {
	rc, err := r.OpenFile(rec)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data := make([]byte, rec.File.Size)
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("read %s: %w", rec.Path, err)
	}

	return data, nil
}
