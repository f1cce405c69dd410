// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"errors"
	"fmt"
)

// Sentinel errors for IFS operations. Use errors.Is in callers.
var (
	// ErrInputNotFound means the IFS input path is missing or not a regular file.
	ErrInputNotFound = errors.New("IFS input not found")
	// ErrInvalidFormat is the parent of every image format error.
	ErrInvalidFormat = errors.New("invalid IFS image")
	// ErrHeaderNotFound means neither startup nor image header signature was found.
	ErrHeaderNotFound = fmt.Errorf("%w: no startup or image header signature", ErrInvalidFormat)
	// ErrShortHeader means a header buffer is shorter than its fixed layout.
	ErrShortHeader = fmt.Errorf("%w: short header", ErrInvalidFormat)
	// ErrInvalidDirent means a directory record is malformed.
	ErrInvalidDirent = fmt.Errorf("%w: invalid directory entry", ErrInvalidFormat)
	// ErrTruncatedDirent means a directory record payload ended early.
	ErrTruncatedDirent = fmt.Errorf("%w: truncated directory entry", ErrInvalidFormat)
	// ErrUnsupportedCompression means the startup header selects an unknown algorithm.
	ErrUnsupportedCompression = errors.New("unsupported compression")
	// ErrDecompress means a compressed segment or stream failed to decode.
	ErrDecompress = errors.New("decompress failed")
	// ErrPatternNotFound means a signature pattern does not occur in the scanned range.
	ErrPatternNotFound = errors.New("pattern not found")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrClosed means the reader or resource is already closed.
	ErrClosed = errors.New("reader or resource already closed")
	// ErrNotAFile means a record passed to a file operation is not a regular file.
	ErrNotAFile = errors.New("record is not a regular file")
	// ErrInvalidExtractPath means record path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrExtractPathOutsideRoot means resolved extraction path escapes destination root.
	ErrExtractPathOutsideRoot = errors.New("extract path escapes destination root")
)

// SegmentError describes one failed segment of a segmented compressed stream.
type SegmentError struct {
	// Offset is the absolute input offset of the segment length prefix.
	Offset int64
	// InLen is the compressed segment length from the prefix.
	InLen int
	// Status is the decoder status code (zero when the failure is an I/O error).
	Status int
	// Err is the underlying decoder or read error.
	Err error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment at 0x%x (%d bytes): status %d: %v", e.Offset, e.InLen, e.Status, e.Err)
}

func (e *SegmentError) Unwrap() []error {
	return []error{ErrDecompress, e.Err}
}
