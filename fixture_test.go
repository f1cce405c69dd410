// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
)

// testEntry describes one directory record of a synthetic image.
type testEntry struct {
	mode   Mode
	path   string
	data   []byte
	target string
	mtime  uint32
	dev    uint32
	rdev   uint32
}

// testByteOrder is a byte order that can both put and append integers.
type testByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// testImageOptions tune buildTestImage.
type testImageOptions struct {
	order testByteOrder
	// boundDir stores hdr_dir_size so the walk also stops at the directory end.
	boundDir bool
	// trailer appends a 4-byte checksum trailer after file data.
	trailer bool
}

// buildTestImage builds an image header, directory records and file data.
// File payloads follow the directory in record order.
func buildTestImage(t testing.TB, opts testImageOptions, entries []testEntry) []byte {
	t.Helper()

	order := opts.order
	if order == nil {
		order = binary.LittleEndian
	}

	var dir bytes.Buffer
	var data bytes.Buffer
	recLens := make([]int, len(entries))
	for i, e := range entries {
		recLens[i] = len(encodeTestRecord(order, e, 0))
	}

	dirEnd := ImageHeaderSize
	for _, n := range recLens {
		dirEnd += n
	}

	for _, e := range entries {
		offset := 0
		if e.mode.FileType() == ModeFile {
			offset = dirEnd + data.Len()
			data.Write(e.data)
		}
		dir.Write(encodeTestRecord(order, e, uint32(offset)))
	}

	total := dirEnd + data.Len()
	if opts.trailer {
		total += TrailerSize
	}

	hdr := make([]byte, ImageHeaderSize)
	copy(hdr, "imagefs")
	if order == binary.BigEndian {
		hdr[7] = ImageFlagBigEndian
	}
	order.PutUint32(hdr[8:], uint32(total))
	if opts.boundDir {
		order.PutUint32(hdr[12:], uint32(dirEnd))
	}
	order.PutUint32(hdr[16:], ImageHeaderSize)
	order.PutUint32(hdr[20:], 1)
	order.PutUint32(hdr[36:], 2)

	out := make([]byte, 0, total)
	out = append(out, hdr...)
	out = append(out, dir.Bytes()...)
	out = append(out, data.Bytes()...)
	if opts.trailer {
		out = order.AppendUint32(out, 0xc0ffee00)
	}

	return out
}

// encodeTestRecord encodes one record padded to 4 bytes.
func encodeTestRecord(order testByteOrder, e testEntry, fileOffset uint32) []byte {
	var payload []byte
	switch e.mode.FileType() {
	case ModeFile:
		payload = order.AppendUint32(payload, fileOffset)
		payload = order.AppendUint32(payload, uint32(len(e.data)))
		payload = append(payload, e.path...)
		payload = append(payload, 0)
	case ModeDir:
		payload = append(payload, e.path...)
		payload = append(payload, 0)
	case ModeSymlink:
		payload = order.AppendUint16(payload, uint16(len(e.path)+1))
		payload = order.AppendUint16(payload, uint16(len(e.target)))
		payload = append(payload, e.path...)
		payload = append(payload, 0)
		payload = append(payload, e.target...)
		payload = append(payload, 0)
	default:
		payload = order.AppendUint32(payload, e.dev)
		payload = order.AppendUint32(payload, e.rdev)
		payload = append(payload, e.path...)
		payload = append(payload, 0)
	}

	for (AttrSize+len(payload))%4 != 0 {
		payload = append(payload, 0)
	}

	rec := make([]byte, AttrSize, AttrSize+len(payload))
	order.PutUint16(rec[0:], uint16(AttrSize+len(payload)))
	order.PutUint32(rec[4:], 1)
	order.PutUint32(rec[8:], uint32(e.mode))
	order.PutUint32(rec[20:], e.mtime)
	return append(rec, payload...)
}

// buildStartupHeader encodes a startup header. Fields after the flags are
// written in the target byte order selected by flags1.
func buildStartupHeader(flags1 uint8, startupSize, storedSize uint32) []byte {
	var order binary.ByteOrder = binary.LittleEndian
	if flags1&StartupFlagBigEndian != 0 {
		order = binary.BigEndian
	}

	hdr := make([]byte, StartupHeaderSize)
	copy(hdr, []byte{0xeb, 0x7e, 0xff, 0x00})
	binary.LittleEndian.PutUint16(hdr[4:], 1)
	hdr[6] = flags1
	order.PutUint16(hdr[8:], StartupHeaderSize)
	order.PutUint16(hdr[10:], 3)
	order.PutUint32(hdr[16:], 0x1000)
	order.PutUint32(hdr[32:], startupSize)
	order.PutUint32(hdr[36:], storedSize)
	return hdr
}

// buildStartupImage wraps tail behind a boot prefix and startup stage.
func buildStartupImage(prefix int, flags1 uint8, startupSize int, tail []byte) []byte {
	stored := uint32(startupSize + len(tail) + TrailerSize)
	out := bytes.Repeat([]byte{0x90}, prefix)
	out = append(out, buildStartupHeader(flags1, uint32(startupSize), stored)...)
	out = append(out, bytes.Repeat([]byte{0xa5}, startupSize-StartupHeaderSize)...)
	out = append(out, tail...)
	return append(out, 0xde, 0xad, 0xbe, 0xef)
}

// lzoLiteralSegments encodes data as LZO1X literal-only segments with a terminator.
func lzoLiteralSegments(data []byte) []byte {
	var out []byte
	for len(data) > 0 {
		n := min(len(data), 238)
		seg := append([]byte{byte(17 + n)}, data[:n]...)
		seg = append(seg, 0x11, 0x00, 0x00)
		out = binary.BigEndian.AppendUint16(out, uint16(len(seg)))
		out = append(out, seg...)
		data = data[n:]
	}

	return append(out, 0x00, 0x00)
}

// uclLiteralSegments encodes data as NRV2B literal-only segments with a terminator.
func uclLiteralSegments(data []byte) []byte {
	var out []byte
	for len(data) > 0 {
		n := min(len(data), 4096)
		var enc nrv2bTestEncoder
		for _, c := range data[:n] {
			enc.literal(c)
		}
		enc.end()
		seg := enc.bytes()
		out = binary.BigEndian.AppendUint16(out, uint16(len(seg)))
		out = append(out, seg...)
		data = data[n:]
	}

	return append(out, 0x00, 0x00)
}

// nrv2bTestEncoder emits NRV2B streams bit by bit.
type nrv2bTestEncoder struct {
	out      []byte
	bitPos   int
	bitCount int
}

func (e *nrv2bTestEncoder) putBit(b uint32) {
	if e.bitCount == 0 {
		e.bitPos = len(e.out)
		e.out = append(e.out, 0)
		e.bitCount = 8
	}
	e.bitCount--
	if b != 0 {
		e.out[e.bitPos] |= 1 << uint(e.bitCount)
	}
}

// putGamma writes v >= 2 as the interleaved gamma code read by the decoder.
func (e *nrv2bTestEncoder) putGamma(v uint32) {
	top := 31
	for v>>uint(top)&1 == 0 {
		top--
	}
	for i := top - 1; i >= 0; i-- {
		e.putBit(v >> uint(i) & 1)
		if i == 0 {
			e.putBit(1)
		} else {
			e.putBit(0)
		}
	}
}

func (e *nrv2bTestEncoder) literal(c byte) {
	e.putBit(1)
	e.out = append(e.out, c)
}

// match copies length bytes from off back. off must not exceed 0xd00 and length must be at least 2.
func (e *nrv2bTestEncoder) match(off uint32, length uint32) {
	e.putBit(0)
	e.putGamma((off-1)>>8 + 3)
	e.out = append(e.out, byte((off-1)&0xff))
	mlen := length - 1
	if mlen >= 4 {
		e.putBit(0)
		e.putBit(0)
		e.putGamma(mlen - 2)
		return
	}
	e.putBit(mlen >> 1 & 1)
	e.putBit(mlen & 1)
}

func (e *nrv2bTestEncoder) end() {
	e.putBit(0)
	e.putGamma(0x1000002)
	e.out = append(e.out, 0xff)
}

func (e *nrv2bTestEncoder) bytes() []byte { return e.out }

// writeTestFile writes data into a temp dir and returns the path.
func writeTestFile(t testing.TB, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}

	return path
}

// newTestLogger returns a debug level logger capturing entries in memory.
func newTestLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

// sampleEntries is a small tree with every record kind.
func sampleEntries() []testEntry {
	return []testEntry{
		{mode: ModeDir | 0o755, path: "", mtime: 1000},
		{mode: ModeDir | 0o755, path: "proc", mtime: 1100},
		{mode: ModeDir | 0o755, path: "proc/boot", mtime: 1200},
		{mode: ModeSymlink | 0o777, path: "proc/boot/sh", target: "ksh", mtime: 1300},
		{mode: ModeCharDev | 0o666, path: "dev/null", dev: 1, rdev: 2, mtime: 1400},
		{mode: ModeFile | 0o755, path: "proc/boot/ksh", data: []byte("#!ksh\nexit 0\n"), mtime: 1500},
		{mode: ModeFile | 0o644, path: "etc/motd", data: []byte("hello from the image\n"), mtime: 1600},
	}
}
