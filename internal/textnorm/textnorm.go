// Package textnorm normalizes recognized utterances for keyword comparison.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims surrounding whitespace and lower-cases the utterance.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return cases.Lower(language.Und).String(trimmed)
}

// Fold normalizes and strips combining marks so "guión" and "guion" compare equal.
func Fold(raw string) string {
	normalized := Normalize(raw)
	if normalized == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, normalized)
	if err != nil {
		return normalized
	}
	return folded
}

// Words splits a normalized utterance into words, dropping edge punctuation.
func Words(normalized string) []string {
	fields := strings.Fields(normalized)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if word == "" {
			continue
		}
		out = append(out, word)
	}
	return out
}
