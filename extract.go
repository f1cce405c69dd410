// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
)

// extractCopyBufferSize defines buffer size for file copy during extraction.
const extractCopyBufferSize = 64 * 1024

const (
	extractDirMode  os.FileMode = 0o755
	extractFileMode os.FileMode = 0o644
)

// dirTime is a directory whose mtime is re-applied by Finish.
type dirTime struct {
	path  string
	rel   string
	mtime time.Time
}

// Extractor materializes records under a destination root, one at a time.
// It is not safe for concurrent use.
type Extractor struct {
	src         io.ReaderAt
	srcSize     int64
	imageOffset int64
	root        string
	fsRoot      *os.Root
	closed      bool
	opts        ExtractOptions
	log         log.Interface
	matcher     *recordMatcher
	copyBuf     []byte
	dirs        []dirTime
}

// NewExtractor prepares extraction of records whose file payloads live in src
// at imageOffset-relative offsets. dstDir is created when missing. Every
// filesystem change goes through an os.Root opened at dstDir; Finish or
// Close releases it.
func NewExtractor(src io.ReaderAt, srcSize, imageOffset int64, dstDir string, opts ExtractOptions) (*Extractor, error) {
	if src == nil {
		return nil, ErrNilReader
	}

	opts.applyDefaults()

	root, err := filepath.Abs(dstDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	if opts.Clean {
		if err := os.RemoveAll(root); err != nil {
			return nil, fmt.Errorf("clean output dir: %w", err)
		}
	}

	if err := os.MkdirAll(root, extractDirMode); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	matcher, err := newRecordMatcher(opts.Include, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	fsRoot, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}

	return &Extractor{
		src:         src,
		srcSize:     srcSize,
		imageOffset: imageOffset,
		root:        root,
		fsRoot:      fsRoot,
		opts:        opts,
		log:         opts.Logger,
		matcher:     matcher,
		copyBuf:     make([]byte, extractCopyBufferSize),
	}, nil
}

// Root returns the absolute destination root.
func (x *Extractor) Root() string { return x.root }

// Apply materializes one record. Failures to create a symlink or to set its
// timestamp are logged and swallowed; every other error is returned.
func (x *Extractor) Apply(rec Record) error {
	if x.closed {
		return ErrClosed
	}

	if x.opts.OnRecord != nil {
		x.opts.OnRecord(rec)
	}

	if !x.matcher.Match(rec) {
		return nil
	}

	outPath, rel, err := x.resolve(rec)
	if err != nil {
		x.log.WithFields(log.Fields{
			"path": rec.Path,
			"kind": rec.Kind.String(),
		}).WithError(err).Warn("skip record")
		return nil
	}

	var done bool
	switch rec.Kind {
	case KindDir:
		done, err = x.applyDir(rec, outPath, rel)
	case KindFile:
		done, err = x.applyFile(rec, outPath, rel)
	case KindSymlink:
		done = x.applySymlink(rec, outPath, rel)
	default:
		x.log.WithFields(log.Fields{
			"path": rec.Path,
			"type": rec.TypeTag(),
			"dev":  rec.Device.Dev,
			"rdev": rec.Device.RDev,
		}).Debug("device node not created")
	}

	if err != nil {
		return err
	}

	if done && x.opts.OnRecordDone != nil {
		x.opts.OnRecordDone(rec, outPath)
	}

	return nil
}

// applyDir creates a directory and stamps its mtime. The root record is a no-op.
func (x *Extractor) applyDir(rec Record, outPath, rel string) (bool, error) {
	if rel == "." {
		return false, nil
	}

	if err := x.mkdirAll(rel); err != nil {
		return false, fmt.Errorf("create directory %s: %w", rec.Path, err)
	}

	mtime := rec.Attr.ModTime()
	if err := setModTimeNoFollow(outPath, mtime); err != nil {
		return false, fmt.Errorf("set mtime %s: %w", rec.Path, err)
	}

	x.dirs = append(x.dirs, dirTime{path: outPath, rel: rel, mtime: mtime})
	return true, nil
}

// applyFile writes the record payload and stamps its mtime.
func (x *Extractor) applyFile(rec Record, outPath, rel string) (bool, error) {
	start := x.imageOffset + int64(rec.File.Offset)
	size := int64(rec.File.Size)
	if start+size > x.srcSize {
		return false, fmt.Errorf(
			"%w: file %s range 0x%x+0x%x exceeds stream size 0x%x",
			ErrInvalidFormat, rec.Path, start, size, x.srcSize,
		)
	}

	if err := x.mkdirParent(rel); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", rec.Path, err)
	}

	// never write through a link left by an earlier record
	if info, err := x.fsRoot.Lstat(rel); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := x.fsRoot.Remove(rel); err != nil {
			return false, fmt.Errorf("replace symlink %s: %w", rec.Path, err)
		}
	}

	file, err := x.fsRoot.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, extractFileMode)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", rec.Path, err)
	}

	written, copyErr := copyExtractData(file, io.NewSectionReader(x.src, start, size), x.copyBuf)
	closeErr := file.Close()
	if copyErr != nil {
		return false, fmt.Errorf("write %s: %w", rec.Path, copyErr)
	}

	if closeErr != nil {
		return false, fmt.Errorf("close %s: %w", rec.Path, closeErr)
	}

	if written != size {
		return false, fmt.Errorf("write %s: %w: %d of %d bytes", rec.Path, io.ErrUnexpectedEOF, written, size)
	}

	mtime := rec.Attr.ModTime()
	if err := setModTimeNoFollow(outPath, mtime); err != nil {
		return false, fmt.Errorf("set mtime %s: %w", rec.Path, err)
	}

	return true, nil
}

// applySymlink creates the link with its raw target. Every failure here is soft.
func (x *Extractor) applySymlink(rec Record, outPath, rel string) bool {
	target := rec.Symlink.Target
	entry := x.log.WithFields(log.Fields{
		"path":   rec.Path,
		"target": target,
	})

	resolved := resolveSymlinkTarget(x.root, rec.Path, target)
	if _, err := os.Stat(resolved); err != nil {
		entry.WithField("resolved", resolved).Debug("symlink target does not exist yet")
	}

	if err := x.mkdirParent(rel); err != nil {
		entry.WithError(err).Warn("create symlink parent")
		return false
	}

	if _, err := x.fsRoot.Lstat(rel); err == nil {
		if err := x.fsRoot.RemoveAll(rel); err != nil {
			entry.WithError(err).Warn("remove existing object at symlink path")
			return false
		}
	}

	if err := x.fsRoot.Symlink(target, rel); err != nil {
		entry.WithError(err).Warn("create symlink")
		return false
	}

	if err := setModTimeNoFollow(outPath, rec.Attr.ModTime()); err != nil {
		entry.WithError(err).Debug("set symlink mtime")
	}

	return true
}

// resolve maps rec onto the output root. It returns the absolute path and
// the path relative to the root, or ErrExtractPathOutsideRoot when the
// record text or an existing symlinked directory leads outside the root.
func (x *Extractor) resolve(rec Record) (string, string, error) {
	outPath, err := resolveExtractPath(x.root, rec.Path)
	if err != nil {
		return "", "", err
	}

	rel, err := filepath.Rel(x.root, outPath)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %w", ErrInvalidExtractPath, rec.Path, err)
	}

	// a directory record is entered by MkdirAll, other kinds only by their parent
	walk := filepath.Dir(rel)
	if rec.Kind == KindDir {
		walk = rel
	}

	if err := x.checkConfined(rec.Path, walk); err != nil {
		return "", "", err
	}

	return outPath, rel, nil
}

// checkConfined rejects rel when one of its existing components is a symlink
// that does not resolve to a directory inside the output root.
func (x *Extractor) checkConfined(recordPath, rel string) error {
	if rel == "." {
		return nil
	}

	parts := strings.Split(rel, string(filepath.Separator))
	for i := range parts {
		prefix := filepath.Join(parts[:i+1]...)
		info, err := x.fsRoot.Lstat(prefix)
		if err != nil {
			// missing or unreadable components are left to the create step
			return nil
		}

		if info.Mode()&os.ModeSymlink == 0 {
			continue
		}

		if st, err := x.fsRoot.Stat(prefix); err != nil || !st.IsDir() {
			return fmt.Errorf(
				"%w: %q: %s links outside the output root or not to a directory",
				ErrExtractPathOutsideRoot, recordPath, filepath.ToSlash(prefix),
			)
		}
	}

	return nil
}

// mkdirAll creates rel and its parents inside the root. An existing
// directory, or a link resolving to one inside the root, is kept.
func (x *Extractor) mkdirAll(rel string) error {
	if rel == "." {
		return nil
	}

	if info, err := x.fsRoot.Stat(rel); err == nil && info.IsDir() {
		return nil
	}

	return x.fsRoot.MkdirAll(rel, extractDirMode)
}

// mkdirParent creates the parent directories of rel inside the root.
func (x *Extractor) mkdirParent(rel string) error {
	return x.mkdirAll(filepath.Dir(rel))
}

// Finish re-applies directory mtimes, children before parents, since
// writing entries into a directory resets its mtime. It then closes the
// extractor.
func (x *Extractor) Finish() error {
	var errs []error
	for i := len(x.dirs) - 1; i >= 0; i-- {
		d := x.dirs[i]
		// a later symlink record may have replaced a parent
		if err := x.checkConfined(d.rel, filepath.Dir(d.rel)); err != nil {
			x.log.WithError(err).Warn("skip directory mtime")
			continue
		}

		if err := setModTimeNoFollow(d.path, d.mtime); err != nil {
			errs = append(errs, fmt.Errorf("set mtime %s: %w", d.path, err))
		}
	}

	errs = append(errs, x.Close())
	return errors.Join(errs...)
}

// Close releases the output root handle. It is safe to call more than once.
func (x *Extractor) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true

	return x.fsRoot.Close()
}

// Extract walks every record of the image and materializes it under dstDir.
// Records are processed strictly in directory order.
func (r *Reader) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if err := r.checkOpen(); err != nil {
		return err
	}

	if opts.Logger == nil {
		opts.Logger = r.opts.Logger
	}

	x, err := NewExtractor(r.work, r.workSize, r.imageOffset, dstDir, opts)
	if err != nil {
		return err
	}
	defer func() { _ = x.Close() }()

	for rec, err := range r.Walker().All() {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := x.Apply(rec); err != nil {
			return err
		}
	}

	return x.Finish()
}

// copyExtractData copies one payload stream to output file using a fixed buffer.
func copyExtractData(dst *os.File, src io.Reader, buf []byte) (int64, error) {
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}

	var total int64
	for {
		readN, readErr := src.Read(buf)
		if readN > 0 {
			writeN, writeErr := dst.Write(buf[:readN])
			total += int64(writeN)

			if writeErr != nil {
				return total, writeErr
			}

			if writeN != readN {
				return total, io.ErrShortWrite
			}
		}

		if readErr == nil {
			continue
		}

		if readErr == io.EOF {
			return total, nil
		}

		return total, readErr
	}
}
