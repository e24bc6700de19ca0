// Package diff renders line diffs between two versions of a text artifact
// (such as a jar TOC) so changes can be reported to the user.
// It uses github.com/pmezard/go-difflib/difflib to produce classic unified
// patches (---/+++ headers, @@ hunks, lines prefixed with ' ', '-', '+').
package diff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Options controls patch generation behavior.
type Options struct {
	// MaxBytes is a guardrail on input size (old+new). When exceeded,
	// a minimal placeholder patch is returned and oversize=true.
	// 0 means "no limit".
	MaxBytes int

	// Context controls the number of context lines in unified hunks.
	// If 0, default to 3.
	Context int
}

// Stats counts changed lines in a patch.
type Stats struct {
	Added   int
	Removed int
}

// Changed reports whether any line was added or removed.
func (s Stats) Changed() bool { return s.Added > 0 || s.Removed > 0 }

// Unified produces a unified patch for a↦b.
// Returns the patch body and a flag indicating it was omitted due to size.
// Identical inputs yield an empty body.
func Unified(aName, bName string, a, b []byte, opt Options) (body string, oversize bool) {
	if opt.MaxBytes > 0 && (len(a)+len(b)) > opt.MaxBytes {
		return omitted(aName, bName), true
	}

	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}

	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(a)),
		B:        splitLinesKeepNL(string(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return omitted(aName, bName), false
	}
	return s, false
}

// Count returns the added/removed line counts between a and b without
// rendering hunks.
func Count(a, b []byte) Stats {
	m := difflib.NewMatcher(splitLinesKeepNL(string(a)), splitLinesKeepNL(string(b)))
	var st Stats
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			st.Removed += op.I2 - op.I1
			st.Added += op.J2 - op.J1
		case 'd':
			st.Removed += op.I2 - op.I1
		case 'i':
			st.Added += op.J2 - op.J1
		}
	}
	return st
}

// splitLinesKeepNL splits into lines and keeps newline characters,
// which produces better unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

// omitted returns a compact placeholder when size limits are exceeded.
func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", aName, bName)
}
