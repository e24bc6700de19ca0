// Package gypi generates the Blink modules build description.
//
// The source lists live in an embedded YAML model: each section is a gypi
// variable whose value is a list, built from groups of entries. A group
// gated by a feature is kept only while that feature is enabled. Selection
// (Model.Select) and text rendering (Render) are separate steps.
package gypi

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed modules.yaml
var modulesYAML []byte

// Model is the ordered list of sections written to the gypi file.
type Model struct {
	Sections []Section `yaml:"sections"`
}

// Section is one list-valued variable.
type Section struct {
	Key     string   `yaml:"key"`
	Comment []string `yaml:"comment,omitempty"`
	Groups  []Group  `yaml:"groups"`
}

// Group is a run of entries gated by Feature. An empty Feature is always
// emitted.
type Group struct {
	Feature string   `yaml:"feature"`
	Files   []string `yaml:"files"`
}

// IsComment reports whether a list entry is a comment line rather than a
// file.
func IsComment(entry string) bool {
	return strings.HasPrefix(entry, "#")
}

// Default returns the embedded modules model.
func Default() (Model, error) {
	return Parse(modulesYAML)
}

// Parse decodes a model. Unknown fields are rejected.
func Parse(data []byte) (Model, error) {
	var m Model
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Model{}, fmt.Errorf("parse modules model: %w", err)
	}
	return m, nil
}

// Select returns a copy of m without the groups whose feature is disabled.
// Sections are kept even when every group is dropped.
func (m Model) Select(f Features) Model {
	out := Model{Sections: make([]Section, 0, len(m.Sections))}
	for _, s := range m.Sections {
		sel := Section{Key: s.Key, Comment: s.Comment}
		for _, g := range s.Groups {
			if f.Disabled(g.Feature) {
				continue
			}
			sel.Groups = append(sel.Groups, g)
		}
		out.Sections = append(out.Sections, sel)
	}
	return out
}

// Files returns the file entries of a section in order, skipping comments.
func (s Section) Files() []string {
	var out []string
	for _, g := range s.Groups {
		for _, e := range g.Files {
			if !IsComment(e) {
				out = append(out, e)
			}
		}
	}
	return out
}

// Section returns the section named key.
func (m Model) Section(key string) (Section, bool) {
	for _, s := range m.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// Features returns the distinct gating features in first-use order.
func (m Model) Features() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range m.Sections {
		for _, g := range s.Groups {
			if g.Feature == "" || seen[g.Feature] {
				continue
			}
			seen[g.Feature] = true
			out = append(out, g.Feature)
		}
	}
	return out
}
