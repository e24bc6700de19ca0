package jartoc

import (
	"regexp"
	"strings"
)

// javap output is structured by indent (2-space) levels.
var (
	// Lines to keep:
	//   ^[^ ]                top level: every class/method/field signature
	//   ^  SourceFile:       class-file metadata
	//   ^  minor version:
	//   ^  major version:
	//   ^  Constant value:   static final values, inlined by dependents
	reKeep = regexp.MustCompile(`^(?:[^ ]|  SourceFile:|  minor version:|  major version:|  Constant value:)`)

	// Lines to drop even if kept above: the constant pool, i.e. literals
	// used inside the class.
	reDrop = regexp.MustCompile(`^const #`)
)

// ExtractAPI filters javap output down to the lines that describe the
// externally visible API. Lines are kept in their original order and are
// never rewritten. The result is a pure function of its input.
func ExtractAPI(disassembly string) string {
	lines := strings.Split(disassembly, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if reKeep.MatchString(line) && !reDrop.MatchString(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
