// Package testutil provides deterministic helpers for scadunit tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeEngineScript stands in for OpenSCAD. Its mesh files hold one cell per
// line: cube(N) renders cells 1..N, any other snippet renders a single shape
// line, and difference() writes the lines of the first import missing from
// the second (or reports an empty top level object).
//
// Snippet keywords trigger engine diagnostics:
//
//	hang          sleeps for 10s
//	undefined_var prints the unknown variable warning, exits 0
//	soft_assert   prints an assertion error, exits 0
//	assert, (-    prints an assertion error, exits 1
//	crash         prints a parser error, exits 1
//
// A use<> of a missing library prints the library warning and exits 0.
// Paths in the source resolve against the source file's directory.
// When FAKE_ENGINE_LOG is set, each invocation appends "SRC OUT" to it.
const fakeEngineScript = `#!/bin/sh
out=""
src=""
while [ $# -gt 0 ]; do
	case "$1" in
	-o) out="$2"; shift 2 ;;
	--export-format|-D) shift 2 ;;
	*) src="$1"; shift ;;
	esac
done

if [ -n "$FAKE_ENGINE_LOG" ]; then
	echo "$src $out" >> "$FAKE_ENGINE_LOG"
fi

# Like OpenSCAD, resolve -o against the working directory and every path
# inside the source against the source's own directory.
case "$out" in
/*) ;;
*) out="$PWD/$out" ;;
esac
case "$src" in
/*) ;;
*) src="$PWD/$src" ;;
esac
cd "$(dirname "$src")" || exit 1

if grep -q 'difference()' "$src"; then
	a=$(sed -n 's/.*import("\(.*\)");.*/\1/p' "$src" | sed -n 1p)
	b=$(sed -n 's/.*import("\(.*\)");.*/\1/p' "$src" | sed -n 2p)
	for f in "$a" "$b"; do
		if [ ! -f "$f" ]; then
			echo "WARNING: Can't open import file \"$f\"." >&2
			echo "Current top level object is empty." >&2
			exit 1
		fi
	done
	residual=$(grep -vxF -f "$b" "$a")
	if [ -z "$residual" ]; then
		echo "WARNING: No top level geometry to render" >&2
		echo "Current top level object is empty." >&2
		exit 1
	fi
	printf '%s\n' "$residual" > "$out"
	exit 0
fi

lib=$(sed -n 's/^use <\(.*\)>;$/\1/p' "$src")
if [ -n "$lib" ] && [ ! -f "$lib" ]; then
	echo "WARNING: Can't open library '$lib'." >&2
fi
body=$(grep -v '^use <' "$src")

case "$body" in
*hang*) sleep 10 ;;
esac
case "$body" in
*undefined_var*) echo "WARNING: Ignoring unknown variable 'undefined_var' in file $src, line 2" >&2 ;;
*soft_assert*) echo "ERROR: Assertion 'soft' failed in file lib.scad, line 7" >&2 ;;
*assert*|*'(-'*)
	echo "ERROR: Assertion '(size > 0)' failed in file lib.scad, line 3" >&2
	echo "Execution aborted" >&2
	exit 1
	;;
*crash*)
	echo "ERROR: Parser error in file $src, line 2: syntax error" >&2
	exit 1
	;;
esac

n=$(printf '%s\n' "$body" | sed -n 's/.*cube(\([0-9][0-9]*\)).*/\1/p' | sed -n 1p)
if [ -n "$n" ]; then
	: > "$out"
	i=1
	while [ "$i" -le "$n" ]; do
		echo "cell $i" >> "$out"
		i=$((i + 1))
	done
else
	printf 'shape %s\n' "$body" > "$out"
fi
exit 0
`

// FakeEngine writes the fake engine script to a temp dir and returns its path.
func FakeEngine(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-openscad")
	if err := os.WriteFile(path, []byte(fakeEngineScript), 0755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return path
}

// CubeMesh writes a fake mesh equal to the fake engine's render of cube(n)
// and returns its path.
func CubeMesh(t testing.TB, dir, name string, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "cell %d\n", i)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write mesh: %v", err)
	}
	return path
}

// Library writes a small SCAD library file and returns its path.
func Library(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "lib.scad")
	if err := os.WriteFile(path, []byte("module part(size) { cube(size); }\n"), 0644); err != nil {
		t.Fatalf("write library: %v", err)
	}
	return path
}
