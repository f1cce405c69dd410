// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

// Command dumpifs lists the contents of a QNX IFS image and optionally
// extracts it into a directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/jessevdk/go-flags"
	"github.com/schollz/progressbar/v3"
	"github.com/woozymasta/pathrules"
	"golang.org/x/sys/unix"

	"github.com/woozymasta/ifs"
)

type options struct {
	OutputDir  string   `short:"d" long:"outputdir" value-name:"DIR" description:"Extract into DIR; it is removed and recreated first"`
	Verbose    bool     `short:"v" long:"verbose" description:"Log every decompressed segment and debug diagnostics"`
	Manifest   string   `long:"manifest" value-name:"FILE" description:"Write decoded headers and records to FILE as YAML"`
	Include    []string `long:"include" value-name:"PATTERN" description:"Only process records matching PATTERN (repeatable)"`
	Exclude    []string `long:"exclude" value-name:"PATTERN" description:"Skip records matching PATTERN (repeatable)"`
	Progress   bool     `long:"progress" description:"Show decompression progress on stderr"`
	ScratchDir string   `long:"scratch-dir" value-name:"DIR" description:"Directory for the decompressed working copy"`

	Args struct {
		Image string `positional-arg-name:"IFS" description:"IFS image file"`
	} `positional-args:"yes" required:"yes"`
}

// exitUsage is returned for command line errors.
const exitUsage = 2

func run(args []string, stdout, stderr io.Writer) error {
	var opts options
	p := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	p.Name = "dumpifs"

	if _, err := p.ParseArgs(args); err != nil {
		return err
	}

	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	logger := &log.Logger{Handler: cli.New(stderr), Level: level}

	// hold signals so the scratch copy is always removed by Close
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	readerOpts := ifs.ReaderOptions{
		Logger:     logger,
		Verbose:    opts.Verbose,
		ScratchDir: opts.ScratchDir,
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = newProgressBar(stderr)
		readerOpts.Progress = bar
	}

	r, err := ifs.OpenWithOptions(opts.Args.Image, readerOpts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if err := ctx.Err(); err != nil {
		return err
	}

	printHeaders(stdout, r)

	rules := buildRules(opts.Include, opts.Exclude)
	var records []ifs.Record
	if opts.OutputDir != "" {
		err = r.Extract(ctx, opts.OutputDir, ifs.ExtractOptions{
			Logger:  logger,
			Include: rules,
			Clean:   true,
			OnRecord: func(rec ifs.Record) {
				printRecord(stdout, r, rec)
				records = append(records, rec)
			},
		})
	} else {
		records, err = listRecords(stdout, r, rules)
	}

	if err != nil {
		return err
	}

	if opts.Manifest != "" {
		if err := writeManifest(opts.Manifest, opts.Args.Image, r, records); err != nil {
			return err
		}
		logger.WithField("path", opts.Manifest).Info("manifest written")
	}

	return nil
}

// listRecords prints every record selected by rules.
func listRecords(w io.Writer, r *ifs.Reader, rules []pathrules.Rule) ([]ifs.Record, error) {
	records, err := r.Records()
	if err != nil {
		return records, err
	}

	records, err = ifs.FilterRecords(records, rules, pathrules.MatcherOptions{})
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		printRecord(w, r, rec)
	}

	return records, nil
}

// buildRules orders includes before excludes so an exclude wins on overlap.
func buildRules(include, exclude []string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(include)+len(exclude))
	for _, pattern := range include {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: pattern})
	}
	for _, pattern := range exclude {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: pattern})
	}

	return rules
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("decompress"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var flagsErr *flags.Error
	switch {
	case err == nil:
		return 0
	case errors.As(err, &flagsErr):
		if flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return exitUsage
	case errors.Is(err, ifs.ErrInputNotFound):
		return int(unix.ENOENT)
	case errors.Is(err, ifs.ErrUnsupportedCompression):
		return int(unix.EOPNOTSUPP)
	case errors.Is(err, ifs.ErrDecompress):
		return int(unix.EIO)
	case errors.Is(err, ifs.ErrInvalidFormat):
		return int(unix.EINVAL)
	case errors.Is(err, context.Canceled):
		return int(unix.EINTR)
	default:
		return 1
	}
}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	code := exitCode(err)
	if err != nil {
		if code == 0 {
			fmt.Fprintln(os.Stdout, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	os.Exit(code)
}
