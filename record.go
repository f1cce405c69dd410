// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// parseRecord decodes the variant payload that follows attr.
// Type bits outside file, dir and symlink produce a device shaped record.
func parseRecord(attr Attr, payload []byte, order binary.ByteOrder) (Record, error) {
	rec := Record{Attr: attr}

	var err error
	switch attr.Mode.FileType() {
	case ModeFile:
		if len(payload) < 8 {
			return rec, fmt.Errorf("%w: file payload is %d bytes", ErrInvalidDirent, len(payload))
		}
		rec.Kind = KindFile
		rec.File = &FileData{
			Offset: order.Uint32(payload[0:4]),
			Size:   order.Uint32(payload[4:8]),
		}
		rec.Path, err = cString(payload[8:], 0)

	case ModeDir:
		rec.Kind = KindDir
		if len(payload) > 0 {
			rec.Path, err = cString(payload, 0)
		}

	case ModeSymlink:
		if len(payload) < 4 {
			return rec, fmt.Errorf("%w: symlink payload is %d bytes", ErrInvalidDirent, len(payload))
		}
		rec.Kind = KindSymlink
		names := payload[4:]
		sym := &SymlinkData{
			SymOffset: order.Uint16(payload[0:2]),
			SymSize:   order.Uint16(payload[2:4]),
		}
		rec.Symlink = sym
		if rec.Path, err = cString(names, 0); err != nil {
			break
		}
		sym.Target, err = cString(names, int(sym.SymOffset))

	default:
		if len(payload) < 8 {
			return rec, fmt.Errorf("%w: device payload is %d bytes", ErrInvalidDirent, len(payload))
		}
		rec.Kind = KindDevice
		rec.Device = &DeviceData{
			Dev:  order.Uint32(payload[0:4]),
			RDev: order.Uint32(payload[4:8]),
		}
		rec.Path, err = cString(payload[8:], 0)
	}

	return rec, err
}

// cString returns the NUL-terminated string that starts at buf[start].
func cString(buf []byte, start int) (string, error) {
	if start < 0 || start >= len(buf) {
		return "", fmt.Errorf("%w: string offset %d outside %d byte payload", ErrInvalidDirent, start, len(buf))
	}

	end := bytes.IndexByte(buf[start:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: string at %d has no terminating NUL", ErrInvalidDirent, start)
	}

	return string(buf[start : start+end]), nil
}

// TypeTag returns the listing tag for the record file type, e.g. "S_IFCHR".
func (r *Record) TypeTag() string { return r.Attr.Mode.TypeName() }
