// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

// ReadHeaders opens an image and returns only its decoded headers.
// Compressed images are still decompressed to locate the image header.
func ReadHeaders(path string) (Headers, error) {
	return ReadHeadersWithOptions(path, ReaderOptions{})
}

// ReadHeadersWithOptions is ReadHeaders with explicit reader options.
func ReadHeadersWithOptions(path string, opts ReaderOptions) (Headers, error) {
	r, err := OpenWithOptions(path, opts)
	if err != nil {
		return Headers{}, err
	}
	defer func() { _ = r.Close() }()

	return r.Headers(), nil
}

// ListRecords opens an image and returns every directory record.
func ListRecords(path string) ([]Record, error) {
	return ListRecordsWithOptions(path, ReaderOptions{})
}

// ListRecordsWithOptions is ListRecords with explicit reader options.
func ListRecordsWithOptions(path string, opts ReaderOptions) ([]Record, error) {
	r, err := OpenWithOptions(path, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return r.Records()
}
