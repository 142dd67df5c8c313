// Package stacktrace trims goroutine dumps down to the frames of this module.
package stacktrace

import (
	"bufio"
	"bytes"
	"strings"
)

// InternalPaths returns the "internal/...go:line" location of every frame
// under an internal/ directory, innermost first.
func InternalPaths(stack []byte) []string {
	var paths []string

	sc := bufio.NewScanner(bytes.NewReader(stack))
	for sc.Scan() {
		line := sc.Text()
		// Frame locations are the tab-indented lines following each function.
		if !strings.HasPrefix(line, "\t") {
			continue
		}

		loc, _, _ := strings.Cut(strings.TrimSpace(line), " ")
		_, rel, found := strings.Cut(loc, "/internal/")
		if !found || !strings.Contains(rel, ".go:") {
			continue
		}
		paths = append(paths, "internal/"+rel)
	}

	return paths
}
