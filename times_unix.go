// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

//go:build linux || darwin || freebsd || netbsd || openbsd

package ifs

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// setModTimeNoFollow sets atime and mtime of path without following a final symlink.
func setModTimeNoFollow(path string, mtime time.Time) error {
	ts := unix.NsecToTimespec(mtime.UnixNano())
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, []unix.Timespec{ts, ts}, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return &os.PathError{Op: "utimensat", Path: path, Err: err}
	}

	return nil
}
