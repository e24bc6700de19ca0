package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildtools/internal/gypi"
)

func TestEmbeddedModelIsValid(t *testing.T) {
	m, err := gypi.Default()
	require.NoError(t, err)
	assert.NoError(t, Model(m))
}

func TestModelReportsEveryIssue(t *testing.T) {
	m := gypi.Model{Sections: []gypi.Section{
		{Key: "a", Groups: []gypi.Group{
			{Files: []string{"x/One.idl", "# note", "x/One.idl"}},
			{Feature: "telepathy", Files: []string{"/abs/Two.idl"}},
			{Feature: "battery"},
		}},
		{Key: "a", Groups: []gypi.Group{
			{Files: []string{`win\Three.cpp`, "../up/Four.h", " "}},
		}},
		{Key: ""},
	}}

	err := Model(m)
	require.Error(t, err)
	msgs := strings.Split(err.Error(), "\n")
	assert.Len(t, msgs, 9)
	for _, want := range []string{
		`duplicate file "x/One.idl"`,
		`unknown feature "telepathy"`,
		`must be relative, got "/abs/Two.idl"`,
		"group must list at least one entry",
		"duplicate section key",
		"forward slashes",
		"'..' segments",
		"file must be non-empty",
	} {
		assert.Contains(t, err.Error(), want)
	}
	assert.Contains(t, msgs[len(msgs)-1], "key must be non-empty")
}

func TestEmptyModel(t *testing.T) {
	assert.ErrorContains(t, Model(gypi.Model{}), "at least one section")
}

func TestErrlistNil(t *testing.T) {
	var e *errlist
	e.add("ignored")
	assert.NoError(t, e.err())
}
