// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath converts a record or user path to normalized slash-separated form.
// It removes leading "./" and "/" and cleans "." segments; "" means the image root.
func NormalizePath(raw string) string {
	raw = normalizePathForMatching(raw)
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// normalizePathForMatching normalizes user supplied rule patterns for matcher use.
func normalizePathForMatching(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "./")
	return path
}

// resolveExtractPath maps a record path onto root. Leading "/" is treated
// as the image root; ".." segments that climb above root are rejected.
func resolveExtractPath(root, recordPath string) (string, error) {
	if strings.ContainsRune(recordPath, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidExtractPath, recordPath)
	}

	rel := path.Clean(strings.TrimLeft(recordPath, "/"))
	if rel == "." || rel == "" {
		return root, nil
	}

	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %q", ErrExtractPathOutsideRoot, recordPath)
	}

	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// resolveSymlinkTarget returns where target of the link at linkPath points
// inside root. Absolute targets are re-rooted under root; relative targets
// are joined with the link's parent directory.
func resolveSymlinkTarget(root, linkPath, target string) string {
	if strings.HasPrefix(target, "/") {
		return filepath.Join(root, filepath.FromSlash(strings.TrimLeft(target, "/")))
	}

	return filepath.Join(root, filepath.FromSlash(path.Dir(linkPath)), filepath.FromSlash(target))
}
