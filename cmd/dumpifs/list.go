// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package main

import (
	"fmt"
	"io"

	"github.com/woozymasta/ifs"
)

// printHeaders prints the startup summary and the region table head.
func printHeaders(w io.Writer, r *ifs.Reader) {
	layout := r.Layout()
	shdr, spos, hasStartup := r.StartupHeader()
	if hasStartup {
		fmt.Fprintf(w, "Image startup_size: 0x%08x\n", shdr.StartupSize)
		fmt.Fprintf(w, "Image stored_size: 0x%08x\n", shdr.StoredSize)
		fmt.Fprintf(w, "Compressed size: 0x%x (%s)\n", shdr.CompressedSize(), shdr.Compression())
		if stats := r.DecompressStats(); stats.Compression != ifs.CompressNone {
			fmt.Fprintf(w, "Decompressed %d bytes -> %d bytes\n", stats.BytesIn, stats.BytesOut)
		}
	}

	fmt.Fprintln(w, "   Offset     Size  Name")
	if hasStartup {
		if spos != 0 {
			fmt.Fprintf(w, " %x %x  \"*.boot\"\n", 0, spos)
		}
		fmt.Fprintf(w, " %8x %8x  Startup-header flags1=0x%x flags2=0x%x paddr_bias=0x%x\n",
			spos, shdr.HeaderSize, shdr.Flags1, shdr.Flags2, shdr.PaddrBias)
		fmt.Fprintf(w, " %x %x  startup.*\n", layout.StartupPayloadOffset, layout.StartupPayloadSize)
	}

	fmt.Fprintf(w, " %8x %8x  Image-header\n", layout.ImageOffset, ifs.ImageHeaderSize)
	fmt.Fprintf(w, " %x %x Image-directory\n", layout.DirOffset, layout.DirSize)
}

// printRecord prints one listing line for rec.
func printRecord(w io.Writer, r *ifs.Reader, rec ifs.Record) {
	_, ipos := r.ImageHeader()
	switch rec.Kind {
	case ifs.KindFile:
		fmt.Fprintf(w, " %8x %8x  %s\n", ipos+int64(rec.File.Offset), rec.File.Size, rec.Path)
	case ifs.KindDir:
		name := rec.Path
		if rec.IsRoot() {
			name = "Root-dirent"
		}
		fmt.Fprintf(w, "     ----     ----  %s\n", name)
	case ifs.KindSymlink:
		fmt.Fprintf(w, "     ---- %8x  %s -> %s\n", rec.Symlink.SymSize, rec.Path, rec.Symlink.Target)
	default:
		fmt.Fprintf(w, "     ----     ----  %s dev=%d rdev=%d %s\n", rec.Path, rec.Device.Dev, rec.Device.RDev, rec.TypeTag())
	}
}
