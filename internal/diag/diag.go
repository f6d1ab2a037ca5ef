package diag

import (
	"strings"
)

// Category is a set of diagnostic markers found in engine output.
// The zero value is Other.
type Category uint8

const (
	ImportMissing Category = 1 << iota
	UnknownVariable
	EmptyResult
	AssertionTriggered
)

// Other is the category of text that carries no known marker.
const Other Category = 0

// Marker strings, matched case-insensitively against engine stderr.
const (
	MarkerImportFile      = "can't open import file"
	MarkerLibrary         = "can't open library"
	MarkerUnknownVariable = "ignoring unknown variable"
	MarkerEmptyObject     = "current top level object is empty"
	MarkerAssertion       = "error: assertion"
)

var markers = []struct {
	text string
	cat  Category
}{
	{MarkerImportFile, ImportMissing},
	{MarkerLibrary, ImportMissing},
	{MarkerUnknownVariable, UnknownVariable},
	{MarkerEmptyObject, EmptyResult},
	{MarkerAssertion, AssertionTriggered},
}

var names = []struct {
	cat  Category
	name string
}{
	{ImportMissing, "import_missing"},
	{UnknownVariable, "unknown_variable"},
	{EmptyResult, "empty_result"},
	{AssertionTriggered, "assertion_triggered"},
}

// Classify returns every category whose marker appears in text.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	var c Category
	for _, m := range markers {
		if strings.Contains(lower, m.text) {
			c |= m.cat
		}
	}
	return c
}

// Has reports whether all categories in flag are present in c.
func (c Category) Has(flag Category) bool {
	return flag != 0 && c&flag == flag
}

// ForcesFailure reports whether c contains a marker that must fail a render
// even when the engine exited 0.
func (c Category) ForcesFailure() bool {
	return c&(ImportMissing|UnknownVariable) != 0
}

// Names returns the category names in declaration order.
// Other yields ["other"].
func (c Category) Names() []string {
	if c == Other {
		return []string{"other"}
	}
	var out []string
	for _, n := range names {
		if c&n.cat != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (c Category) String() string {
	return strings.Join(c.Names(), "|")
}

// Lines splits diagnostic text into lines without dropping or trimming any of
// them. A single trailing newline does not produce an empty final line.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
