package suite

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates the snippet from the expected mesh in an encoded case.
const Delimiter = "#"

// ErrMalformedCase is returned for a case string that does not split into
// exactly one snippet and one expected mesh path.
var ErrMalformedCase = errors.New("malformed test case")

// Case pairs a snippet under test with the mesh it must be equivalent to.
type Case struct {
	// Code is the snippet evaluated against the library under test.
	Code string `yaml:"code" json:"code"`

	// Expected is the path of the expected mesh.
	Expected string `yaml:"expected" json:"expected"`
}

// String encodes the case as "code#expected".
func (c Case) String() string {
	return c.Code + Delimiter + c.Expected
}

// ParseCase decodes "code#expected". A snippet containing the delimiter is
// rejected rather than split ambiguously.
func ParseCase(s string) (Case, error) {
	parts := strings.Split(s, Delimiter)
	if len(parts) != 2 {
		return Case{}, fmt.Errorf("%w %q: want exactly one %q between code and expected mesh, found %d",
			ErrMalformedCase, s, Delimiter, len(parts)-1)
	}
	c := Case{Code: parts[0], Expected: parts[1]}
	if err := c.validate(); err != nil {
		return Case{}, fmt.Errorf("%w %q: %v", ErrMalformedCase, s, err)
	}
	return c, nil
}

// ParseCases decodes every encoded case, stopping at the first malformed one.
func ParseCases(encoded []string) ([]Case, error) {
	cases := make([]Case, 0, len(encoded))
	for _, s := range encoded {
		c, err := ParseCase(s)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (c Case) validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(c.Expected) == "" {
		return fmt.Errorf("expected mesh is required")
	}
	return nil
}
