package classify

import (
	"testing"

	"github.com/rbright/vocalnav/internal/bus"
	"github.com/stretchr/testify/require"
)

func TestClassifySpecialTokens(t *testing.T) {
	c := New(SpanishVocabulary())

	tests := []struct {
		input string
		want  string
	}{
		{input: "Espacio", want: " "},
		{input: "  punto ", want: "."},
		{input: "coma", want: ","},
		{input: "Guión", want: "-"},
		{input: "guion", want: "-"},
		{input: "arroba", want: "@"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := c.Classify(tc.input)
			require.Equal(t, KindLiteralToken, got.Kind)
			require.Equal(t, bus.EventInsertLiteralToken, got.Event.Name)
			require.Equal(t, bus.TextDetail{Text: tc.want}, got.Event.Detail)
		})
	}
}

func TestClassifySpecialTokenRequiresExactUtterance(t *testing.T) {
	c := New(SpanishVocabulary())
	got := c.Classify("el punto de partida")
	require.Equal(t, KindDictation, got.Kind)
}

func TestClassifyReservedWordsByPriority(t *testing.T) {
	c := New(SpanishVocabulary())

	tests := []struct {
		name    string
		input   string
		control Control
		event   bus.Name
	}{
		{name: "cancel", input: "Cancelar", control: ControlCancel, event: bus.EventCloseDialog},
		{name: "cancel in sentence", input: "quiero cancelar esto", control: ControlCancel, event: bus.EventCloseDialog},
		{name: "save", input: "guardar", control: ControlSave, event: bus.EventSaveDialog},
		{name: "confirm", input: "OK", control: ControlConfirm, event: bus.EventConfirmActiveField},
		{name: "clear beats cancel", input: "cancelar y borrar", control: ControlClear, event: bus.EventClearActiveField},
		{name: "cancel beats save", input: "guardar o cerrar", control: ControlCancel, event: bus.EventCloseDialog},
		{name: "save beats confirm", input: "listo, guardar", control: ControlSave, event: bus.EventSaveDialog},
		{name: "punctuation stripped", input: "¡Cancelar!", control: ControlCancel, event: bus.EventCloseDialog},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.input)
			require.Equal(t, KindControl, got.Kind)
			require.Equal(t, tc.control, got.Control)
			require.Equal(t, tc.event, got.Event.Name)
			require.Nil(t, got.Event.Detail)
		})
	}
}

func TestClassifyReservedWordsMatchInsideInflections(t *testing.T) {
	c := New(SpanishVocabulary())

	tests := []struct {
		input   string
		control Control
		word    string
	}{
		{input: "por favor cancelarlo", control: ControlCancel, word: "cancelar"},
		{input: "cancelaremos", control: ControlCancel, word: "cancelar"},
		{input: "guardarlo", control: ControlSave, word: "guardar"},
		{input: "todo okey", control: ControlConfirm, word: "ok"},
		{input: "limpiarlo todo", control: ControlClear, word: "limpiar"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := c.Classify(tc.input)
			require.Equal(t, KindControl, got.Kind)
			require.Equal(t, tc.control, got.Control)
			require.Equal(t, tc.word, got.Word)
			require.NotEqual(t, bus.EventFreeDictation, got.Event.Name)
		})
	}
}

func TestClassifyAnyUtteranceWithCancelarClosesDialog(t *testing.T) {
	c := New(SpanishVocabulary())
	for _, input := range []string{"cancelar", "no quiero, cancelar", "CANCELAR ahora", "mejor cancelarla"} {
		got := c.Classify(input)
		require.Equal(t, bus.EventCloseDialog, got.Event.Name, input)
	}
}

func TestClassifyFreeDictationPreservesOriginal(t *testing.T) {
	c := New(SpanishVocabulary())
	raw := "Juan Pérez González"

	got := c.Classify(raw)
	require.Equal(t, KindDictation, got.Kind)
	require.Equal(t, bus.EventFreeDictation, got.Event.Name)
	require.Equal(t, bus.TextDetail{Text: raw}, got.Event.Detail)
	require.False(t, c.Reserved(raw))
}

func TestCustomVocabulary(t *testing.T) {
	c := New(Vocabulary{
		SpecialTokens: map[string]string{"space": " ", "": "x"},
		Reserved:      map[Control][]string{ControlSave: {"save"}},
	})

	require.Equal(t, KindLiteralToken, c.Classify("Space").Kind)
	require.Equal(t, ControlSave, c.Classify("please save").Control)
	require.Equal(t, KindDictation, c.Classify("espacio").Kind)
}
