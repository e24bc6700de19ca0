package gypi

import (
	"strings"
)

const fileHeader = `{
  'includes': [
    '../core/core_generated.gypi',
    'modules_generated.gypi',
  ],
  'variables': {
    # Experimental hooks for embedder to provide extra IDL and source files.
    #
    # Note: this is not a supported API. If you rely on this, you will be broken
    # from time to time as the code generator changes in backward incompatible
    # ways.
    'extra_blink_module_idl_files': [],
    'extra_blink_module_files': [],
`

const fileTail = `  },
}
`

// Render writes every group of m as gypi text. Gating is not applied; call
// Select first.
func Render(m Model) string {
	var b strings.Builder
	b.WriteString(fileHeader)
	for _, s := range m.Sections {
		for _, c := range s.Comment {
			b.WriteString("    # ")
			b.WriteString(c)
			b.WriteByte('\n')
		}
		b.WriteString("    ")
		b.WriteString(quote(s.Key))
		b.WriteString(": [\n")
		for _, g := range s.Groups {
			for _, e := range g.Files {
				b.WriteString("      ")
				if IsComment(e) {
					b.WriteString(e)
				} else {
					b.WriteString(quote(e))
					b.WriteByte(',')
				}
				b.WriteByte('\n')
			}
		}
		b.WriteString("    ],\n")
	}
	b.WriteString(fileTail)
	return b.String()
}

// Generate renders the embedded model with f applied.
func Generate(f Features) (string, error) {
	m, err := Default()
	if err != nil {
		return "", err
	}
	return Render(m.Select(f)), nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
