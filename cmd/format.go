package main

import (
	"maps"
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatAmount renders a KES amount with thousands separators, e.g.
// "KES 1,250,000.00".
func formatAmount(v float64) string {
	return printer.Sprintf("KES %.2f", v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
