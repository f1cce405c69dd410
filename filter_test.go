// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"testing"

	"github.com/woozymasta/pathrules"
)

func testRecords() []Record {
	return []Record{
		{Kind: KindDir, Path: ""},
		{Kind: KindDir, Path: "proc/boot"},
		{Kind: KindFile, Path: "proc/boot/ksh", File: &FileData{}},
		{Kind: KindSymlink, Path: "proc/boot/sh", Symlink: &SymlinkData{Target: "ksh"}},
		{Kind: KindFile, Path: "etc/motd", File: &FileData{}},
		{Kind: KindDevice, Path: "dev/null", Device: &DeviceData{}},
	}
}

func TestFilterRecordsByPrefix(t *testing.T) {
	t.Parallel()

	filtered := FilterRecordsByPrefix(testRecords(), "/proc/boot/")
	if len(filtered) != 3 {
		t.Fatalf("len(filtered)=%d, want 3", len(filtered))
	}
	if filtered[0].Path != "proc/boot" {
		t.Fatalf("filtered[0].Path=%q, want proc/boot", filtered[0].Path)
	}

	if got := FilterRecordsByPrefix(testRecords(), ""); len(got) != len(testRecords()) {
		t.Fatalf("empty prefix kept %d, want all", len(got))
	}
}

func TestFilterRecordsByKind(t *testing.T) {
	t.Parallel()

	filtered := FilterRecordsByKind(testRecords(), KindFile, KindSymlink)
	if len(filtered) != 3 {
		t.Fatalf("len(filtered)=%d, want 3", len(filtered))
	}
}

func TestFilterRecordsRules(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		rules []pathrules.Rule
		want  int
	}{
		{name: "no rules", rules: nil, want: 6},
		{
			name:  "exclude only keeps the rest",
			rules: []pathrules.Rule{{Action: pathrules.ActionExclude, Pattern: "dev/**"}},
			want:  5,
		},
		{
			name:  "include only drops the rest but keeps root",
			rules: []pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: "etc/**"}},
			want:  2,
		},
		{
			name:  "blank pattern ignored",
			rules: []pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: "  "}},
			want:  6,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := FilterRecords(testRecords(), tc.rules, pathrules.MatcherOptions{})
			if err != nil {
				t.Fatalf("FilterRecords: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("len(got)=%d, want %d", len(got), tc.want)
			}
		})
	}
}

func TestApplyDefaultRuleActionKeepsExplicit(t *testing.T) {
	t.Parallel()

	opts := pathrules.MatcherOptions{DefaultAction: pathrules.ActionInclude}
	applyDefaultRuleAction(&opts, []pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: "a"}})
	if opts.DefaultAction != pathrules.ActionInclude {
		t.Fatalf("DefaultAction=%v, want include", opts.DefaultAction)
	}
}
