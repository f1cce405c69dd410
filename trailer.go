// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"fmt"
	"io"
)

// readImageTrailer reads the checksum word that ends an image of hdr.ImageSize
// bytes at imageOffset. It reports false when the image does not fit in size.
func readImageTrailer(ra io.ReaderAt, size, imageOffset int64, hdr ImageHeader) (Trailer, bool, error) {
	if int64(hdr.ImageSize) < ImageHeaderSize+TrailerSize {
		return Trailer{}, false, nil
	}

	off := imageOffset + int64(hdr.ImageSize) - TrailerSize
	if off+TrailerSize > size {
		return Trailer{}, false, nil
	}

	var buf [TrailerSize]byte
	if err := readFullAt(ra, buf[:], off); err != nil {
		return Trailer{}, false, fmt.Errorf("read image trailer at 0x%x: %w", off, err)
	}

	return Trailer{
		Offset:   off,
		Checksum: hdr.ByteOrder().Uint32(buf[:]),
	}, true, nil
}

// Trailer returns the image checksum trailer, if the image size places one inside the stream.
func (r *Reader) Trailer() (Trailer, bool, error) {
	if err := r.checkOpen(); err != nil {
		return Trailer{}, false, err
	}

	return readImageTrailer(r.work, r.workSize, r.imageOffset, r.image)
}
