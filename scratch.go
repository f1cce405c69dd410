// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"fmt"
	"os"
	"sync"

	"github.com/apex/log"
)

// scratchPattern names decompressed working copies in the scratch directory.
const scratchPattern = "ifs_decompressed*.bin"

// Scratch is a temporary file holding the decompressed working copy.
// Release closes and removes it; release failures are only logged.
type Scratch struct {
	file     *os.File
	log      log.Interface
	mu       sync.Mutex
	released bool
}

// NewScratch creates a scratch file in dir (os.TempDir when empty).
func NewScratch(dir string, logger log.Interface) (*Scratch, error) {
	if logger == nil {
		logger = log.Log
	}

	f, err := os.CreateTemp(dir, scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}

	logger.WithField("path", f.Name()).Debug("scratch file created")
	return &Scratch{file: f, log: logger}, nil
}

// File returns the open scratch file.
func (s *Scratch) File() *os.File { return s.file }

// Path returns the scratch file path.
func (s *Scratch) Path() string { return s.file.Name() }

// Size returns the current scratch file length.
func (s *Scratch) Size() (int64, error) {
	fi, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat scratch file: %w", err)
	}

	return fi.Size(), nil
}

// Release closes and deletes the scratch file. It is safe to call repeatedly.
func (s *Scratch) Release() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true

	entry := s.log.WithField("path", s.file.Name())
	if err := s.file.Close(); err != nil {
		entry.WithError(err).Warn("close scratch file")
	}

	if err := os.Remove(s.file.Name()); err != nil && !os.IsNotExist(err) {
		entry.WithError(err).Warn("remove scratch file")
		return
	}

	entry.Debug("scratch file removed")
}
