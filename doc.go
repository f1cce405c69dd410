// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

/*
Package ifs decodes QNX IFS (image filesystem) boot images and extracts
their contents. It locates the startup and image headers by signature,
rebuilds a decompressed working copy when the image tail is compressed
(zlib, LZO or UCL NRV2B), walks the directory records and materializes
them on the local filesystem.

Layout (summary):
  - optional boot prefix, then a 256-byte startup header and startup code;
  - the image tail, stored raw or as a compressed stream;
  - inside the tail, a 92-byte image header followed by directory records;
  - file payload offsets are relative to the image header.

Compressed tails are written to a scratch file so offsets stored in the
image resolve against one flat stream. The scratch file is removed by
Reader.Close.

# Reading

Open an image and list or read records:

	r, err := ifs.Open("boot.ifs")
	if err != nil {
	    return err
	}
	defer r.Close()
	records, err := r.Records()
	if err != nil {
	    return err
	}
	for _, rec := range records {
	    if rec.Kind == ifs.KindFile {
	        data, _ := r.ReadFile(rec)
	        _ = data
	    }
	}

Records can also be consumed lazily:

	for rec, err := range r.Walker().All() {
	    if err != nil {
	        return err
	    }
	    fmt.Println(rec.Path)
	}

For one-shot metadata use the fast helpers:

	headers, err := ifs.ReadHeaders("boot.ifs")
	records, err := ifs.ListRecords("boot.ifs")

# Extracting

	err := r.Extract(ctx, "out", ifs.ExtractOptions{
	    Clean: true,
	    Include: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "proc/boot/**"},
	    },
	})

Files, directories and symlinks are created with their stored mtimes.
All writes go through an os.Root at the destination; a record whose path
leaves the root, textually or through an extracted symlink, is skipped.
Symlink targets are written verbatim; failures to create a link or to set
its timestamp are logged and extraction continues. Device, FIFO and socket
records are reported only.

# Logging

Diagnostics go through github.com/apex/log. Pass ReaderOptions.Logger and
ExtractOptions.Logger to route them; the default is log.Log.
*/
package ifs
