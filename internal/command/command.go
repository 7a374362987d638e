// Package command holds mounted keyword command descriptors and routes utterances to them.
package command

import (
	"sort"
	"unicode/utf8"

	"github.com/rbright/vocalnav/internal/textnorm"
)

// Handler runs a matched command with the normalized utterance.
type Handler func(normalizedUtterance string)

// Descriptor is one keyword command mounted by a UI owner.
type Descriptor struct {
	ID          string
	Keywords    []string
	Description string
	Handler     Handler
}

// Pass identifies which matching pass selected a descriptor.
type Pass string

const (
	PassExact     Pass = "exact"
	PassSubstring Pass = "substring"
)

// Outcome is the routing result for one utterance.
type Outcome struct {
	Matched    bool
	Descriptor Descriptor
	Keyword    string
	Pass       Pass
	Utterance  string
}

// NoMatch is the zero outcome.
var NoMatch = Outcome{}

// compiled is a descriptor with keywords normalized and pre-sorted for the substring pass.
type compiled struct {
	descriptor Descriptor
	keywords   []string
	bySize     []string
	longest    int
}

func compile(d Descriptor) compiled {
	keywords := make([]string, 0, len(d.Keywords))
	seen := make(map[string]struct{}, len(d.Keywords))
	longest := 0
	for _, raw := range d.Keywords {
		keyword := textnorm.Normalize(raw)
		if keyword == "" {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
		if n := utf8.RuneCountInString(keyword); n > longest {
			longest = n
		}
	}
	return compiled{descriptor: d, keywords: keywords, bySize: byLengthDesc(keywords), longest: longest}
}

func byLengthDesc(keywords []string) []string {
	sorted := append([]string(nil), keywords...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i]) > utf8.RuneCountInString(sorted[j])
	})
	return sorted
}
