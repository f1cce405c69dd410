// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package ifs

import (
	"errors"
	"os"
	"time"
)

// setModTimeNoFollow sets times on regular paths; links are left untouched.
func setModTimeNoFollow(path string, mtime time.Time) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return &os.PathError{Op: "lutimes", Path: path, Err: errors.ErrUnsupported}
	}

	return os.Chtimes(path, mtime, mtime)
}
