// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// recordMatcher holds compiled include/exclude rules for records.
type recordMatcher struct {
	matcher *pathrules.Matcher
}

// newRecordMatcher compiles record path rules. It returns nil when no rule is set.
func newRecordMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*recordMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	applyDefaultRuleAction(&opts, rules)

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("compile path rules: %w", err)
	}

	return &recordMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// applyDefaultRuleAction sets an unset default action: unmatched paths are
// excluded when any include rule exists and included otherwise.
func applyDefaultRuleAction(opts *pathrules.MatcherOptions, rules []pathrules.Rule) {
	if opts.DefaultAction != pathrules.ActionUnknown {
		return
	}

	opts.DefaultAction = pathrules.ActionInclude
	for _, rule := range rules {
		if rule.Action == pathrules.ActionInclude {
			opts.DefaultAction = pathrules.ActionExclude
			return
		}
	}
}

// Match reports whether rec passes the rules. The root directory always passes.
func (m *recordMatcher) Match(rec Record) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	candidate := NormalizePath(rec.Path)
	if candidate == "" {
		return true
	}

	return m.matcher.Included(candidate, rec.Kind == KindDir)
}

// FilterRecords keeps records selected by rules. Empty rules keep everything.
func FilterRecords(records []Record, rules []pathrules.Rule, opts pathrules.MatcherOptions) ([]Record, error) {
	matcher, err := newRecordMatcher(rules, opts)
	if err != nil {
		return nil, err
	}

	if matcher == nil {
		return records, nil
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if matcher.Match(rec) {
			out = append(out, rec)
		}
	}

	return out, nil
}

// FilterRecordsByPrefix keeps records under prefix (or the exact match).
func FilterRecordsByPrefix(records []Record, prefix string) []Record {
	prefix = NormalizePath(prefix)
	if prefix == "" {
		return records
	}

	withSlash := prefix + "/"
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		recPath := NormalizePath(rec.Path)
		if recPath == prefix || strings.HasPrefix(recPath, withSlash) {
			out = append(out, rec)
		}
	}

	return out
}

// FilterRecordsByKind keeps records of the given kinds.
func FilterRecordsByKind(records []Record, kinds ...Kind) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		for _, kind := range kinds {
			if rec.Kind == kind {
				out = append(out, rec)
				break
			}
		}
	}

	return out
}
