// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apex/log"
)

// workingCopyBufferSize is the write buffer in front of the scratch file.
const workingCopyBufferSize = 64 * 1024

// Reader provides read-only access to a located and decompressed IFS image.
type Reader struct {
	// input is the raw image; file is set when Reader owns it.
	input     io.ReaderAt
	file      *os.File
	inputSize int64
	// work is the working stream: input itself, or the scratch copy.
	work     io.ReaderAt
	workSize int64
	scratch  *Scratch
	opts     ReaderOptions
	log      log.Interface

	startup       StartupHeader
	startupOffset int64
	image         ImageHeader
	imageOffset   int64
	stats         DecompressStats

	// mu guards closed state and close operation.
	mu     sync.Mutex
	closed bool
}

// Open locates, decompresses and parses the IFS image at path.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{})
}

// OpenWithOptions is Open with explicit reader options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}

	r, err := NewReaderFromReaderAtWithOptions(f, size, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r.file = f
	return r, nil
}

// NewReaderFromReaderAt parses an IFS image from ra of known size.
func NewReaderFromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	return NewReaderFromReaderAtWithOptions(ra, size, ReaderOptions{})
}

// NewReaderFromReaderAtWithOptions parses an IFS image from ra with explicit options.
// A compressed image is decompressed into a scratch file that Close removes.
func NewReaderFromReaderAtWithOptions(ra io.ReaderAt, size int64, opts ReaderOptions) (*Reader, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	opts.applyDefaults()
	r := &Reader{
		input:         ra,
		inputSize:     size,
		opts:          opts,
		log:           opts.Logger,
		startupOffset: -1,
	}

	if err := r.load(); err != nil {
		r.scratch.Release()
		return nil, err
	}

	return r, nil
}

// openFileWithSize opens a regular file and returns its size.
func openFileWithSize(path string) (*os.File, int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrInputNotFound, path, err)
	}

	if !fi.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("%w: %s is not a regular file", ErrInputNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrInputNotFound, path, err)
	}

	return f, fi.Size(), nil
}

// load runs header location and, when needed, decompression.
func (r *Reader) load() error {
	ipos, err := Scan(r.input, r.inputSize, 0, ImageSignature)
	if err != nil && !errors.Is(err, ErrPatternNotFound) {
		return err
	}

	imageFound := err == nil
	if imageFound && ipos == 0 {
		r.log.Debug("image header at offset 0, no startup stage")
		return r.loadImage(r.input, r.inputSize, 0)
	}

	spos, err := Scan(r.input, r.inputSize, 0, StartupSignature)
	if errors.Is(err, ErrPatternNotFound) {
		if imageFound {
			r.log.WithField("offset", fmt.Sprintf("0x%x", ipos)).Warn("no startup header, using image header")
			return r.loadImage(r.input, r.inputSize, ipos)
		}

		return ErrHeaderNotFound
	}

	if err != nil {
		return err
	}

	return r.loadStartup(spos)
}

// loadStartup decodes the startup header at spos and builds the working copy.
func (r *Reader) loadStartup(spos int64) error {
	hdr, err := ReadStartupHeaderAt(r.input, spos)
	if err != nil {
		return err
	}

	r.startup, r.startupOffset = hdr, spos
	algo := hdr.Compression()
	r.log.WithFields(log.Fields{
		"offset":       fmt.Sprintf("0x%x", spos),
		"startup_size": fmt.Sprintf("0x%x", hdr.StartupSize),
		"stored_size":  fmt.Sprintf("0x%x", hdr.StoredSize),
		"compression":  algo.String(),
	}).Debug("startup header")

	if !algo.Valid() {
		return fmt.Errorf("%w: selector 0x%02x", ErrUnsupportedCompression, uint8(algo))
	}

	scratch, err := NewScratch(r.opts.ScratchDir, r.log)
	if err != nil {
		return err
	}
	r.scratch = scratch

	var dst io.Writer = scratch.File()
	if r.opts.Progress != nil {
		dst = io.MultiWriter(dst, r.opts.Progress)
	}
	bw := bufio.NewWriterSize(dst, workingCopyBufferSize)

	stats, err := BuildWorkingCopy(bw, r.input, r.inputSize, spos, hdr, DecompressOptions{
		Logger:  r.log,
		Verbose: r.opts.Verbose,
	})
	r.stats = stats
	if err != nil {
		return err
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush working copy: %w", err)
	}

	size, err := scratch.Size()
	if err != nil {
		return err
	}

	start := spos + int64(hdr.StartupSize)
	ipos, err := Scan(scratch.File(), size, start, ImageSignature)
	if errors.Is(err, ErrPatternNotFound) {
		return fmt.Errorf("%w: no image header after startup at 0x%x", ErrHeaderNotFound, start)
	}

	if err != nil {
		return err
	}

	return r.loadImage(scratch.File(), size, ipos)
}

// loadImage decodes the image header at ipos of the working stream.
func (r *Reader) loadImage(work io.ReaderAt, size, ipos int64) error {
	hdr, err := ReadImageHeaderAt(work, ipos)
	if err != nil {
		return err
	}

	r.image, r.imageOffset = hdr, ipos
	r.work, r.workSize = work, size
	r.log.WithFields(log.Fields{
		"offset":       fmt.Sprintf("0x%x", ipos),
		"image_size":   fmt.Sprintf("0x%x", hdr.ImageSize),
		"dir_offset":   fmt.Sprintf("0x%x", hdr.DirOffset),
		"hdr_dir_size": fmt.Sprintf("0x%x", hdr.HdrDirSize),
		"big_endian":   hdr.BigEndian(),
	}).Debug("image header")

	return nil
}

// checkOpen rejects nil and closed readers.
func (r *Reader) checkOpen() error {
	if r == nil || r.work == nil {
		return ErrNilReader
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	return nil
}

// StartupHeader returns the startup header, its offset, and whether one exists.
func (r *Reader) StartupHeader() (StartupHeader, int64, bool) {
	return r.startup, r.startupOffset, r.startupOffset >= 0
}

// ImageHeader returns the image header and its offset in the working stream.
func (r *Reader) ImageHeader() (ImageHeader, int64) {
	return r.image, r.imageOffset
}

// Headers returns decoded headers with their offsets.
func (r *Reader) Headers() Headers {
	h := Headers{
		StartupOffset: r.startupOffset,
		Image:         r.image,
		ImageOffset:   r.imageOffset,
	}
	if r.startupOffset >= 0 {
		startup := r.startup
		h.Startup = &startup
	}

	return h
}

// Compression returns the compression of the stored image (none without startup stage).
func (r *Reader) Compression() Compression {
	if r.startupOffset < 0 {
		return CompressNone
	}

	return r.startup.Compression()
}

// DecompressStats returns statistics of the working copy build.
func (r *Reader) DecompressStats() DecompressStats { return r.stats }

// WorkingSize returns the working stream length.
func (r *Reader) WorkingSize() int64 { return r.workSize }

// ScratchPath returns the path of the decompressed working copy, or "" when the input is used directly.
func (r *Reader) ScratchPath() string {
	if r.scratch == nil {
		return ""
	}

	return r.scratch.Path()
}

// Layout returns region offsets for listing.
func (r *Reader) Layout() Layout {
	l := Layout{
		StartupOffset: r.startupOffset,
		ImageOffset:   r.imageOffset,
		DirOffset:     r.imageOffset + int64(r.image.DirOffset),
		InputSize:     r.inputSize,
		WorkingSize:   r.workSize,
	}

	if r.image.HdrDirSize > r.image.DirOffset {
		l.DirSize = int64(r.image.HdrDirSize) - int64(r.image.DirOffset)
	}

	if r.startupOffset >= 0 {
		l.StartupPayloadOffset = r.startupOffset + StartupHeaderSize
		l.StartupPayloadSize = max(int64(r.startup.StartupSize)-StartupHeaderSize, 0)
	}

	return l
}

// Walker returns a fresh directory walker over the working stream.
func (r *Reader) Walker() *Walker {
	return NewWalker(r.work, r.workSize, r.imageOffset, r.image)
}

// Records walks the whole directory.
func (r *Reader) Records() ([]Record, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	return r.Walker().Collect()
}

// Close releases the input file and removes the scratch copy.
func (r *Reader) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	r.scratch.Release()
	if r.file != nil {
		return r.file.Close()
	}

	return nil
}
