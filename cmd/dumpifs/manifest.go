// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/woozymasta/ifs"
)

// manifest is the YAML document written by --manifest.
type manifest struct {
	Input      string              `yaml:"input"`
	Headers    ifs.Headers         `yaml:"headers"`
	Layout     ifs.Layout          `yaml:"layout"`
	Decompress ifs.DecompressStats `yaml:"decompress"`
	Trailer    *ifs.Trailer        `yaml:"trailer,omitempty"`
	Records    []ifs.Record        `yaml:"records"`
}

func writeManifest(path, input string, r *ifs.Reader, records []ifs.Record) error {
	doc := manifest{
		Input:      input,
		Headers:    r.Headers(),
		Layout:     r.Layout(),
		Decompress: r.DecompressStats(),
		Records:    records,
	}

	trailer, ok, err := r.Trailer()
	if err != nil {
		return err
	}
	if ok {
		doc.Trailer = &trailer
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode manifest: %w", err)
	}

	return f.Close()
}
