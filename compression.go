// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/rasky/go-lzo"
)

// Compression is the startup flags1 compression selector.
type Compression uint8

// Supported compression selectors.
const (
	CompressNone Compression = 0x00
	CompressZlib Compression = 0x04
	CompressLZO  Compression = 0x08
	CompressUCL  Compression = 0x0c
)

// String returns selector name.
func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressZlib:
		return "zlib"
	case CompressLZO:
		return "lzo"
	case CompressUCL:
		return "ucl"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(c))
	}
}

// MarshalText encodes the selector by name.
func (c Compression) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Valid reports whether c is one of the supported selectors.
func (c Compression) Valid() bool {
	switch c {
	case CompressNone, CompressZlib, CompressLZO, CompressUCL:
		return true
	default:
		return false
	}
}

// LZO status codes reported in SegmentError.
const (
	lzoStatusError          = -1
	lzoStatusOutputOverrun  = -5
	segmentStatusReadFailed = 0
)

// segmentDecoder decodes one compressed segment into dst and returns the produced length.
type segmentDecoder func(dst, src []byte) (produced int, status int, err error)

// Decompress decodes the compressed tail read from src into dst using algo.
// For LZO and UCL the tail is a sequence of segments, each a big-endian u16
// length followed by that many compressed bytes; a zero length ends it.
func Decompress(dst io.Writer, src io.Reader, algo Compression, opts DecompressOptions) (DecompressStats, error) {
	opts.applyDefaults()
	stats := DecompressStats{Compression: algo}
	if src == nil {
		return stats, ErrNilReader
	}

	switch algo {
	case CompressNone:
		n, err := io.Copy(dst, src)
		stats.BytesIn, stats.BytesOut = n, n
		if err != nil {
			return stats, fmt.Errorf("copy uncompressed tail: %w", err)
		}

		return stats, nil
	case CompressZlib:
		return decompressZlib(dst, src, stats)
	case CompressLZO:
		return decompressSegmented(dst, src, stats, decodeLZOSegment, opts)
	case CompressUCL:
		return decompressSegmented(dst, src, stats, decodeNRV2BSegment, opts)
	default:
		return stats, fmt.Errorf("%w: selector 0x%02x", ErrUnsupportedCompression, uint8(algo))
	}
}

// BuildWorkingCopy writes the decompressed working stream to dst: the input
// bytes [0, startupOffset+StartupSize) verbatim, then the decompressed tail.
// Offsets stored in the image are relative to positions in this stream.
func BuildWorkingCopy(dst io.Writer, src io.ReaderAt, size, startupOffset int64, hdr StartupHeader, opts DecompressOptions) (DecompressStats, error) {
	algo := hdr.Compression()
	if !algo.Valid() {
		return DecompressStats{Compression: algo}, fmt.Errorf("%w: selector 0x%02x", ErrUnsupportedCompression, uint8(algo))
	}

	prefix := startupOffset + int64(hdr.StartupSize)
	if prefix > size || prefix < startupOffset {
		return DecompressStats{Compression: algo}, fmt.Errorf(
			"%w: startup size 0x%x at 0x%x exceeds input size 0x%x",
			ErrInvalidFormat, hdr.StartupSize, startupOffset, size,
		)
	}

	if _, err := io.Copy(dst, io.NewSectionReader(src, 0, prefix)); err != nil {
		return DecompressStats{Compression: algo}, fmt.Errorf("copy startup prefix: %w", err)
	}

	opts.BaseOffset = prefix
	return Decompress(dst, io.NewSectionReader(src, prefix, size-prefix), algo, opts)
}

// decompressSegmented drives a segment decoder over a length-prefixed stream.
func decompressSegmented(
	dst io.Writer,
	src io.Reader,
	stats DecompressStats,
	decode segmentDecoder,
	opts DecompressOptions,
) (DecompressStats, error) {
	br := bufio.NewReaderSize(src, segmentBufferSize)
	in := make([]byte, segmentBufferSize)
	out := make([]byte, segmentBufferSize)
	pos := opts.BaseOffset

	for {
		var prefix [2]byte
		if _, err := io.ReadFull(br, prefix[:]); err != nil {
			return stats, &SegmentError{Offset: pos, Status: segmentStatusReadFailed, Err: fmt.Errorf("read length prefix: %w", err)}
		}

		inLen := int(binary.BigEndian.Uint16(prefix[:]))
		if inLen == 0 {
			return stats, nil
		}

		if _, err := io.ReadFull(br, in[:inLen]); err != nil {
			return stats, &SegmentError{Offset: pos, InLen: inLen, Status: segmentStatusReadFailed, Err: fmt.Errorf("read segment: %w", err)}
		}

		produced, status, err := decode(out, in[:inLen])
		if err != nil {
			return stats, &SegmentError{Offset: pos, InLen: inLen, Status: status, Err: err}
		}

		if _, err := dst.Write(out[:produced]); err != nil {
			return stats, fmt.Errorf("write decompressed segment: %w", err)
		}

		entry := opts.Logger.WithFields(log.Fields{
			"algo":   stats.Compression.String(),
			"offset": fmt.Sprintf("0x%x", pos),
			"in":     inLen,
			"out":    produced,
		})
		if opts.Verbose {
			entry.Info("segment")
		} else {
			entry.Debug("segment")
		}

		stats.Segments++
		stats.BytesIn += int64(inLen) + 2
		stats.BytesOut += int64(produced)
		pos += int64(inLen) + 2
	}
}

// decodeLZOSegment decodes one LZO1X segment.
func decodeLZOSegment(dst, src []byte) (int, int, error) {
	data, err := lzo.Decompress1X(bytes.NewReader(src), len(src), len(dst))
	if err != nil {
		return 0, lzoStatusError, fmt.Errorf("lzo1x: %w", err)
	}

	if len(data) > len(dst) {
		return 0, lzoStatusOutputOverrun, fmt.Errorf("lzo1x: output %d bytes exceeds %d byte segment buffer", len(data), len(dst))
	}

	return copy(dst, data), 0, nil
}

// decodeNRV2BSegment decodes one UCL NRV2B segment.
func decodeNRV2BSegment(dst, src []byte) (int, int, error) {
	n, err := nrv2bDecode(dst, src)
	if err != nil {
		var se *nrv2bError
		if errors.As(err, &se) {
			return n, se.status, err
		}

		return n, -1, err
	}

	return n, 0, nil
}

// decompressZlib inflates a single deflate based stream. The container is
// sniffed: gzip magic, zlib header, otherwise raw deflate.
func decompressZlib(dst io.Writer, src io.Reader, stats DecompressStats) (DecompressStats, error) {
	counter := &countingReader{r: src}
	br := bufio.NewReaderSize(counter, segmentBufferSize)

	// an empty tail inflates to nothing
	if _, err := br.Peek(1); errors.Is(err, io.EOF) {
		return stats, nil
	}

	zr, err := openDeflateStream(br)
	if err != nil {
		return stats, err
	}
	defer func() { _ = zr.Close() }()

	buf := make([]byte, segmentBufferSize)
	for {
		n, readErr := zr.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return stats, fmt.Errorf("write inflated data: %w", err)
			}
			stats.BytesOut += int64(n)
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			stats.BytesIn = counter.n - int64(br.Buffered())
			return stats, fmt.Errorf("%w: inflate: %w", ErrDecompress, readErr)
		}
	}

	stats.BytesIn = counter.n - int64(br.Buffered())
	return stats, nil
}

// openDeflateStream picks the deflate container by its leading bytes.
func openDeflateStream(br *bufio.Reader) (io.ReadCloser, error) {
	magic, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("%w: peek stream header: %w", ErrDecompress, err)
	}

	switch {
	case magic[0] == 0x1f && magic[1] == 0x8b:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip header: %w", ErrDecompress, err)
		}
		zr.Multistream(false)
		return zr, nil
	case magic[0]&0x0f == 0x08 && (uint16(magic[0])<<8|uint16(magic[1]))%31 == 0:
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib header: %w", ErrDecompress, err)
		}
		return zr, nil
	default:
		return flate.NewReader(br), nil
	}
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
