// Package validate checks the structure of the modules source-list model
// before it is rendered. It reports every problem found, aggregated into a
// single error.
package validate

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"buildtools/internal/gypi"
)

// Model validates the modules model:
//
//   - Section keys are non-empty and unique.
//   - Every group gates on a known feature (or none) and lists at least one
//     entry.
//   - File entries are non-empty, relative, use forward slashes, carry no
//     ".." segments and appear at most once per section.
//
// Entries starting with "#" are comments and are not checked as paths.
func Model(m gypi.Model) error {
	var errs errlist

	if len(m.Sections) == 0 {
		errs.add("model must have at least one section")
	}

	keys := make(map[string]struct{}, len(m.Sections))
	for i, s := range m.Sections {
		prefix := fmt.Sprintf("sections[%d] (%s)", i, s.Key)
		if strings.TrimSpace(s.Key) == "" {
			errs.add("%s: key must be non-empty", prefix)
		} else if _, dup := keys[s.Key]; dup {
			errs.add("%s: duplicate section key", prefix)
		} else {
			keys[s.Key] = struct{}{}
		}

		seen := make(map[string]struct{})
		for j, g := range s.Groups {
			gp := fmt.Sprintf("%s.groups[%d] (%s)", prefix, j, g.Feature)
			if g.Feature != "" && !gypi.Known(g.Feature) {
				errs.add("%s: unknown feature %q", gp, g.Feature)
			}
			if len(g.Files) == 0 {
				errs.add("%s: group must list at least one entry", gp)
			}
			for _, f := range g.Files {
				if gypi.IsComment(f) {
					continue
				}
				checkPath(&errs, gp, f)
				if _, dup := seen[f]; dup {
					errs.add("%s: duplicate file %q", gp, f)
				} else if f != "" {
					seen[f] = struct{}{}
				}
			}
		}
	}

	return errs.err()
}

func checkPath(errs *errlist, prefix, p string) {
	if strings.TrimSpace(p) == "" {
		errs.add("%s: file must be non-empty", prefix)
		return
	}
	if path.IsAbs(p) || strings.HasPrefix(p, `\`) {
		errs.add("%s: file must be relative, got %q", prefix, p)
	}
	if strings.Contains(p, `\`) {
		errs.add("%s: file must use forward slashes ('/'), got %q", prefix, p)
	}
	if hasDotDot(p) {
		errs.add("%s: file must not contain '..' segments (got %q)", prefix, p)
	}
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	if e == nil {
		return
	}
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if e == nil || len(e.msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(e.msgs, "\n"))
}
