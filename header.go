// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// DecodeStartupHeader decodes a 256-byte startup header from buf.
// Fields from HeaderSize through Info are byte-swapped when flags1 marks
// a big-endian target; Signature, Version and the flag bytes never are.
func DecodeStartupHeader(buf []byte) (StartupHeader, error) {
	if len(buf) < StartupHeaderSize {
		return StartupHeader{}, fmt.Errorf("%w: startup header needs %d bytes, got %d", ErrShortHeader, StartupHeaderSize, len(buf))
	}

	le := binary.LittleEndian
	h := StartupHeader{
		Signature:    le.Uint32(buf[0:4]),
		Version:      le.Uint16(buf[4:6]),
		Flags1:       buf[6],
		Flags2:       buf[7],
		HeaderSize:   le.Uint16(buf[8:10]),
		Machine:      le.Uint16(buf[10:12]),
		StartupVaddr: le.Uint32(buf[12:16]),
		PaddrBias:    le.Uint32(buf[16:20]),
		ImagePaddr:   le.Uint32(buf[20:24]),
		RAMPaddr:     le.Uint32(buf[24:28]),
		RAMSize:      le.Uint32(buf[28:32]),
		StartupSize:  le.Uint32(buf[32:36]),
		StoredSize:   le.Uint32(buf[36:40]),
		ImagefsPaddr: le.Uint32(buf[40:44]),
		ImagefsSize:  le.Uint32(buf[44:48]),
		PrebootSize:  le.Uint16(buf[48:50]),
		Zero0:        le.Uint16(buf[50:52]),
	}
	for i := range h.Zero {
		h.Zero[i] = le.Uint32(buf[52+4*i:])
	}
	for i := range h.Info {
		h.Info[i] = le.Uint32(buf[64+4*i:])
	}

	if h.BigEndian() {
		h.ByteSwap()
	}

	return h, nil
}

// ByteSwap reverses the byte order of every multi-byte field from HeaderSize
// through Info. Applying it twice restores the original value.
func (h *StartupHeader) ByteSwap() {
	h.HeaderSize = bits.ReverseBytes16(h.HeaderSize)
	h.Machine = bits.ReverseBytes16(h.Machine)
	h.StartupVaddr = bits.ReverseBytes32(h.StartupVaddr)
	h.PaddrBias = bits.ReverseBytes32(h.PaddrBias)
	h.ImagePaddr = bits.ReverseBytes32(h.ImagePaddr)
	h.RAMPaddr = bits.ReverseBytes32(h.RAMPaddr)
	h.RAMSize = bits.ReverseBytes32(h.RAMSize)
	h.StartupSize = bits.ReverseBytes32(h.StartupSize)
	h.StoredSize = bits.ReverseBytes32(h.StoredSize)
	h.ImagefsPaddr = bits.ReverseBytes32(h.ImagefsPaddr)
	h.ImagefsSize = bits.ReverseBytes32(h.ImagefsSize)
	h.PrebootSize = bits.ReverseBytes16(h.PrebootSize)
	h.Zero0 = bits.ReverseBytes16(h.Zero0)
	for i := range h.Zero {
		h.Zero[i] = bits.ReverseBytes32(h.Zero[i])
	}
	for i := range h.Info {
		h.Info[i] = bits.ReverseBytes32(h.Info[i])
	}
}

// DecodeImageHeader decodes an image header from buf. When the image flags
// mark big-endian content, ImageSize, HdrDirSize, DirOffset, BootIno,
// ScriptIno and ChainPaddr are byte-swapped; Spare, MountFlags and
// MountPoint stay as stored.
func DecodeImageHeader(buf []byte) (ImageHeader, error) {
	if len(buf) < ImageHeaderSize {
		return ImageHeader{}, fmt.Errorf("%w: image header needs %d bytes, got %d", ErrShortHeader, ImageHeaderSize, len(buf))
	}

	le := binary.LittleEndian
	var h ImageHeader
	copy(h.Signature[:], buf[0:7])
	h.Flags = buf[7]
	h.ImageSize = le.Uint32(buf[8:12])
	h.HdrDirSize = le.Uint32(buf[12:16])
	h.DirOffset = le.Uint32(buf[16:20])
	for i := range h.BootIno {
		h.BootIno[i] = le.Uint32(buf[20+4*i:])
	}
	h.ScriptIno = le.Uint32(buf[36:40])
	h.ChainPaddr = le.Uint32(buf[40:44])
	for i := range h.Spare {
		h.Spare[i] = le.Uint32(buf[44+4*i:])
	}
	h.MountFlags = le.Uint32(buf[84:88])
	h.MountPoint = buf[88]

	if h.BigEndian() {
		h.ByteSwap()
	}

	return h, nil
}

// ByteSwap reverses the byte order of the swappable image header fields.
func (h *ImageHeader) ByteSwap() {
	h.ImageSize = bits.ReverseBytes32(h.ImageSize)
	h.HdrDirSize = bits.ReverseBytes32(h.HdrDirSize)
	h.DirOffset = bits.ReverseBytes32(h.DirOffset)
	for i := range h.BootIno {
		h.BootIno[i] = bits.ReverseBytes32(h.BootIno[i])
	}
	h.ScriptIno = bits.ReverseBytes32(h.ScriptIno)
	h.ChainPaddr = bits.ReverseBytes32(h.ChainPaddr)
}

// ByteOrder returns the order of directory records and trailer.
func (h *ImageHeader) ByteOrder() binary.ByteOrder {
	if h.BigEndian() {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// decodeAttr decodes the 24-byte record prefix in the given order.
func decodeAttr(buf []byte, order binary.ByteOrder) Attr {
	return Attr{
		Size:          order.Uint16(buf[0:2]),
		ExtattrOffset: order.Uint16(buf[2:4]),
		Ino:           order.Uint32(buf[4:8]),
		Mode:          Mode(order.Uint32(buf[8:12])),
		Gid:           order.Uint32(buf[12:16]),
		UID:           order.Uint32(buf[16:20]),
		Mtime:         order.Uint32(buf[20:24]),
	}
}

// ReadStartupHeaderAt reads and decodes the startup header at off.
func ReadStartupHeaderAt(ra io.ReaderAt, off int64) (StartupHeader, error) {
	var buf [StartupHeaderSize]byte
	if err := readFullAt(ra, buf[:], off); err != nil {
		return StartupHeader{}, fmt.Errorf("read startup header at 0x%x: %w", off, err)
	}

	return DecodeStartupHeader(buf[:])
}

// ReadImageHeaderAt reads and decodes the image header at off.
func ReadImageHeaderAt(ra io.ReaderAt, off int64) (ImageHeader, error) {
	var buf [ImageHeaderSize]byte
	if err := readFullAt(ra, buf[:], off); err != nil {
		return ImageHeader{}, fmt.Errorf("read image header at 0x%x: %w", off, err)
	}

	return DecodeImageHeader(buf[:])
}

// readFullAt fills buf from off and maps short reads to ErrShortHeader.
func readFullAt(ra io.ReaderAt, buf []byte, off int64) error {
	if ra == nil {
		return ErrNilReader
	}

	n, err := ra.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: got %d of %d bytes", ErrShortHeader, n, len(buf))
	}

	return err
}
