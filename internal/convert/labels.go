package convert

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldLabel normalizes a classification label for comparison: trimmed,
// inner whitespace collapsed, Unicode case-folded. The source service
// is not consistent about label casing or spacing, so byte equality is
// too strict.
func foldLabel(s string) string {
	fields := strings.Fields(s)
	// Caser is stateful; build one per call rather than sharing.
	return cases.Fold().String(strings.Join(fields, " "))
}

// matchAccepted scans the offered options for the first one equal
// (after folding) to any accepted label. Returns the option verbatim
// so selection uses the surface's own spelling.
func matchAccepted(options, accepted []string) (string, bool) {
	folded := make([]string, len(accepted))
	for i, a := range accepted {
		folded[i] = foldLabel(a)
	}
	for _, opt := range options {
		fo := foldLabel(opt)
		for _, fa := range folded {
			if fo == fa {
				return opt, true
			}
		}
	}
	return "", false
}
