package render

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ResolvePath returns p as an absolute path for use inside a generated
// source. The engine resolves use<> and import() against the directory of
// the source file, not the working directory. An empty p stays empty.
func ResolvePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}

// WrapSnippet returns source that loads library with use<> and evaluates
// snippet. An empty library yields the snippet alone.
func WrapSnippet(library, snippet string) string {
	snippet = strings.TrimRight(snippet, "; \t\n")
	if library == "" {
		return snippet + ";\n"
	}
	return fmt.Sprintf("use <%s>;\n%s;\n", library, snippet)
}

// DifferenceSource returns source computing base minus subtracted, both
// imported from mesh files.
func DifferenceSource(base, subtracted string) string {
	return fmt.Sprintf("difference() {\n  import(%s);\n  import(%s);\n}\n",
		strconv.Quote(base), strconv.Quote(subtracted))
}
