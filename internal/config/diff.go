package config

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// DiffSerialized returns a readable diff between two serialized
// configuration documents, empty when they are equivalent. Used when a
// reload is rejected, so the log shows what the offending edit changed.
func DiffSerialized(previous, current []byte) string {
	return cmp.Diff(normalizeLines(previous), normalizeLines(current))
}

func normalizeLines(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
