// Package classify decides what to do with utterances no command claimed.
package classify

import (
	"sort"
	"strings"

	"github.com/rbright/vocalnav/internal/bus"
	"github.com/rbright/vocalnav/internal/textnorm"
)

// Kind is the fallback category of an unmatched utterance.
type Kind string

const (
	KindLiteralToken Kind = "literal-token"
	KindControl      Kind = "control"
	KindDictation    Kind = "dictation"
)

// Control is one reserved control intent.
type Control string

const (
	ControlClear   Control = "clear"
	ControlCancel  Control = "cancel"
	ControlSave    Control = "save"
	ControlConfirm Control = "confirm"
)

// controlPriority is the tie-break order when several reserved words are present.
var controlPriority = []Control{ControlClear, ControlCancel, ControlSave, ControlConfirm}

var controlEvents = map[Control]bus.Name{
	ControlClear:   bus.EventClearActiveField,
	ControlCancel:  bus.EventCloseDialog,
	ControlSave:    bus.EventSaveDialog,
	ControlConfirm: bus.EventConfirmActiveField,
}

// Vocabulary holds the language-specific special tokens and reserved words.
type Vocabulary struct {
	SpecialTokens map[string]string
	Reserved      map[Control][]string
}

// SpanishVocabulary is the default vocabulary.
func SpanishVocabulary() Vocabulary {
	return Vocabulary{
		SpecialTokens: map[string]string{
			"espacio": " ",
			"guion":   "-",
			"guión":   "-",
			"punto":   ".",
			"coma":    ",",
			"arroba":  "@",
		},
		Reserved: map[Control][]string{
			ControlClear:   {"borrar", "limpiar"},
			ControlCancel:  {"cancelar", "cerrar"},
			ControlSave:    {"guardar"},
			ControlConfirm: {"confirmar", "aceptar", "listo", "ok"},
		},
	}
}

// Result is the classification of one utterance plus the event it maps to.
type Result struct {
	Kind    Kind
	Control Control
	Word    string
	Event   bus.Event
}

// Classifier applies the literal-token, reserved-word, dictation fallback chain.
type Classifier struct {
	tokens   map[string]string
	// reserved holds folded words per control, longest first.
	reserved map[Control][]string
}

// New compiles a vocabulary into a classifier.
func New(vocab Vocabulary) *Classifier {
	c := &Classifier{
		tokens:   make(map[string]string, len(vocab.SpecialTokens)),
		reserved: make(map[Control][]string, len(vocab.Reserved)),
	}
	for word, literal := range vocab.SpecialTokens {
		key := textnorm.Fold(word)
		if key == "" {
			continue
		}
		c.tokens[key] = literal
	}
	for control, words := range vocab.Reserved {
		seen := make(map[string]struct{}, len(words))
		folded := make([]string, 0, len(words))
		for _, word := range words {
			key := textnorm.Fold(word)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			folded = append(folded, key)
		}
		sort.Slice(folded, func(i, j int) bool {
			if len(folded[i]) != len(folded[j]) {
				return len(folded[i]) > len(folded[j])
			}
			return folded[i] < folded[j]
		})
		c.reserved[control] = folded
	}
	return c
}

// Classify maps an unmatched raw utterance to exactly one dispatch event.
func (c *Classifier) Classify(raw string) Result {
	folded := textnorm.Fold(raw)

	if literal, ok := c.tokens[folded]; ok {
		return Result{
			Kind:  KindLiteralToken,
			Word:  folded,
			Event: bus.Event{Name: bus.EventInsertLiteralToken, Detail: bus.TextDetail{Text: literal}},
		}
	}

	// Containment, not word equality: "cancelarlo" and "guardaremos" still count.
	for _, control := range controlPriority {
		for _, word := range c.reserved[control] {
			if strings.Contains(folded, word) {
				return Result{
					Kind:    KindControl,
					Control: control,
					Word:    word,
					Event:   bus.Event{Name: controlEvents[control]},
				}
			}
		}
	}

	return Result{
		Kind:  KindDictation,
		Event: bus.Event{Name: bus.EventFreeDictation, Detail: bus.TextDetail{Text: raw}},
	}
}

// Reserved reports whether the folded utterance contains any reserved word.
func (c *Classifier) Reserved(raw string) bool {
	return c.Classify(raw).Kind == KindControl
}
