// Package report renders harness results as canonical JSON or text.
//
// The JSON form is RFC 8785 canonical, so identical runs produce identical
// bytes and a stable digest. The store keeps that form for every run.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/scadunit/internal/harness"
)

// DomainReport prefixes the report digest.
const DomainReport = "scadunit/report/v1"

// Build converts r into the canonical report object. Empty optional fields
// are omitted.
func Build(r *harness.Result) map[string]any {
	passed, failed, skipped := r.Counts()

	cases := make([]any, 0, len(r.Cases))
	for i := range r.Cases {
		cases = append(cases, buildCase(&r.Cases[i]))
	}

	obj := map[string]any{
		"run_id":  r.RunID,
		"command": r.Command,
		"pass":    r.Pass,
		"counts": map[string]any{
			"passed":  passed,
			"failed":  failed,
			"skipped": skipped,
		},
		"cases": cases,
	}
	putString(obj, "suite", r.Suite)
	putString(obj, "library", r.Library)
	return obj
}

func buildCase(c *harness.CaseResult) map[string]any {
	obj := map[string]any{
		"index":     c.Index,
		"kind":      string(c.Kind),
		"code":      c.Code,
		"state":     string(c.State),
		"exit_code": c.ExitCode,
	}
	putString(obj, "expected", c.Expected)
	putString(obj, "output", c.Output)
	putString(obj, "failure", string(c.Failure))
	putString(obj, "new_parts", c.NewParts)
	putString(obj, "missing_parts", c.MissingParts)
	putString(obj, "error", c.Error)
	if len(c.Category) > 0 {
		obj["category"] = c.Category
	}
	if len(c.Diagnostics) > 0 {
		obj["diagnostics"] = c.Diagnostics
	}
	return obj
}

func putString(obj map[string]any, key, value string) {
	if value != "" {
		obj[key] = value
	}
}

// Marshal returns the canonical JSON report of r.
func Marshal(r *harness.Result) ([]byte, error) {
	data, err := MarshalCanonical(Build(r))
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// Digest returns the hex SHA-256 of data with domain separation.
// Format: SHA256(DomainReport + 0x00 + data)
func Digest(data []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainReport))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// WriteJSON writes the canonical report followed by a newline.
func WriteJSON(w io.Writer, r *harness.Result) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteText writes a human-readable summary of r.
func WriteText(w io.Writer, r *harness.Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s (%s)", r.RunID, r.Command)
	if r.Suite != "" {
		fmt.Fprintf(&b, " suite=%s", r.Suite)
	}
	b.WriteByte('\n')

	for i := range r.Cases {
		writeCaseText(&b, &r.Cases[i])
	}

	passed, failed, skipped := r.Counts()
	verdict := "PASS"
	if !r.Pass {
		verdict = "FAIL"
	}
	fmt.Fprintf(&b, "%s: %d passed, %d failed, %d skipped\n", verdict, passed, failed, skipped)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCaseText(b *strings.Builder, c *harness.CaseResult) {
	mark := "FAIL"
	switch {
	case c.State == harness.StateSkipped:
		mark = "skip"
	case c.Passed():
		mark = "ok"
	}

	fmt.Fprintf(b, "  [%s] #%d %s %s", mark, c.Index, c.Kind, c.Code)
	if c.Failure != "" {
		fmt.Fprintf(b, ": %s", c.Failure)
	}
	b.WriteByte('\n')

	if c.Output != "" && c.Passed() {
		fmt.Fprintf(b, "         output: %s\n", c.Output)
	}
	if c.Error != "" {
		fmt.Fprintf(b, "         error: %s\n", c.Error)
	}
	if c.NewParts != "" {
		fmt.Fprintf(b, "         new parts: %s\n", c.NewParts)
	}
	if c.MissingParts != "" {
		fmt.Fprintf(b, "         missing parts: %s\n", c.MissingParts)
	}
	for _, line := range c.Diagnostics {
		fmt.Fprintf(b, "         | %s\n", line)
	}
}
