// Package jartoc creates a TOC ("table of contents") file from a Java jar.
//
// The TOC contains the non-package API of the jar: all public and protected
// classes, methods and fields, the values of static final constants, and
// some class-file metadata (source file, major/minor version). It is used to
// decide whether libraries depending on the jar must be rebuilt: any change
// to the jar that would require a rebuild shows up as a change of its TOC,
// and nothing else does.
package jartoc

import (
	"strings"

	"buildtools/internal/ziputil"
)

const classSuffix = ".class"

// EnumerateClasses returns the fully-qualified names of the classes stored
// in the archive, in archive order.
func EnumerateClasses(archivePath string) ([]string, error) {
	names, err := ziputil.EntryNames(archivePath)
	if err != nil {
		return nil, &InputError{Path: archivePath, Err: err}
	}
	classes := make([]string, 0, len(names))
	for _, n := range names {
		if c, ok := ClassName(n); ok {
			classes = append(classes, c)
		}
	}
	return classes, nil
}

// ClassName derives the class name for an archive member, e.g.
// "org/chromium/base/Class$Inner.class" -> "org.chromium.base.Class$Inner".
// ok is false for members that are not compiled classes.
func ClassName(member string) (name string, ok bool) {
	if !strings.HasSuffix(member, classSuffix) {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimSuffix(member, classSuffix), "/", "."), true
}
