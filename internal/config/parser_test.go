package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFullConfig(t *testing.T) {
	cfg, warnings, err := Parse(`
{
  // recognizer
  "speech": {
    "endpoint": " localhost:8085 ",
    "insecure": true,
    "language_code": "es-MX",
    "model": "latest_short",
    "stream_limit_ms": 60000,
    "command_boost": 15,
  },
  "audio": {"input": "yeti", "fallback": "default"},
  "recognition": {"restart_delay_ms": 250, "max_restart_delay_ms": 4000, "default_enabled": true},
  "meter": {"enable": false, "interval_ms": 33, "window": 512},
  "bridge": {"listen": "127.0.0.1:9900", "path": "/ws", "allowed_origins": "http://localhost:5173, https://escuela.example"},
  "indicator": {"sound_enable": false, "text_error": "  Sin micrófono  "},
  "vocabulary": {
    "special_tokens": {"barra": "/"},
    "reserved": {"clear": ["suprimir"], "Confirm": ["vale"]},
  },
  "commands": {"edit-record": ["modificar", "editar"], "open-help": "socorro, ayuda"},
  "vocab": {
    "global": ["escuela"],
    "sets": {"escuela": {"boost": 12, "phrases": ["matrícula", "expediente"]}},
  },
  "state_dir": "/tmp/vocalnav-state",
  "debug": {"grpc_dump": true},
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, "localhost:8085", cfg.Speech.Endpoint)
	require.True(t, cfg.Speech.Insecure)
	require.Equal(t, "es-MX", cfg.Speech.LanguageCode)
	require.Equal(t, "latest_short", cfg.Speech.Model)
	require.Equal(t, 60000, cfg.Speech.StreamLimitMS)
	require.Equal(t, 15.0, cfg.Speech.CommandBoost)
	require.Equal(t, "yeti", cfg.Audio.Input)
	require.Equal(t, 250, cfg.Recognition.RestartDelayMS)
	require.Equal(t, 4000, cfg.Recognition.MaxRestartDelayMS)
	require.Equal(t, 1000, cfg.Recognition.QuickFailWindowMS)
	require.True(t, cfg.Recognition.DefaultEnabled)
	require.False(t, cfg.Meter.Enable)
	require.Equal(t, 512, cfg.Meter.Window)
	require.Equal(t, "127.0.0.1:9900", cfg.Bridge.Listen)
	require.Equal(t, []string{"http://localhost:5173", "https://escuela.example"}, cfg.Bridge.AllowedOrigins)
	require.False(t, cfg.Indicator.SoundEnable)
	require.Equal(t, "Sin micrófono", cfg.Indicator.TextError)
	require.Equal(t, map[string]string{"barra": "/"}, cfg.Vocabulary.SpecialTokens)
	require.Equal(t, map[string][]string{"clear": {"suprimir"}, "confirm": {"vale"}}, cfg.Vocabulary.Reserved)
	require.Equal(t, []string{"modificar", "editar"}, cfg.Commands["edit-record"])
	require.Equal(t, []string{"socorro", "ayuda"}, cfg.Commands["open-help"])
	require.Equal(t, "/tmp/vocalnav-state", cfg.StateDir)
	require.True(t, cfg.Debug.EnableGRPCDump)

	phrases, _, err := BuildSpeechPhrases(cfg)
	require.NoError(t, err)
	require.Equal(t, []SpeechPhrase{{Phrase: "expediente", Boost: 12}, {Phrase: "matrícula", Boost: 12}}, phrases)
}

func TestParseDoesNotMutateBase(t *testing.T) {
	base := Default()
	_, _, err := Parse(`{"commands": {"open-help": ["socorro"]}, "vocab": {"sets": {"x": {"phrases": ["y"]}}}}`, base)
	require.NoError(t, err)
	require.Empty(t, base.Commands)
	require.Empty(t, base.Vocab.Sets)
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseWarnings(t *testing.T) {
	_, warnings, err := Parse(`{
  "speech": {"automatic_punctuation": true},
  "commands": {"open-help": []},
}`, Default())
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "automatic_punctuation")
	require.Contains(t, warnings[1].Message, "commands.open-help")
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, _, err := Parse(`{"speech": {"grpc": "127.0.0.1:50051"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseRejectsEmptyNames(t *testing.T) {
	tests := []struct {
		input   string
		wantErr string
	}{
		{input: `{"vocab":{"sets":{" ":{"phrases":["x"]}}}}`, wantErr: "empty set name"},
		{input: `{"commands":{" ":["x"]}}`, wantErr: "empty command id"},
		{input: `{"vocabulary":{"special_tokens":{" ":"x"}}}`, wantErr: "empty word"},
	}

	for _, tc := range tests {
		_, _, err := Parse(tc.input, Default())
		require.Error(t, err)
		require.Contains(t, err.Error(), tc.wantErr)
	}
}

func TestParseRejectsMultipleTopLevelValues(t *testing.T) {
	_, _, err := Parse(`{"meter":{"enable":false}}{"meter":{"enable":true}}`, Default())
	require.Error(t, err)
}

func TestParseTypeErrorIncludesLocation(t *testing.T) {
	_, _, err := Parse(`{
  "speech": {"stream_limit_ms": "long"}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
	require.Contains(t, err.Error(), "column")
}

func TestParseVocabGlobalSupportsCommaString(t *testing.T) {
	cfg, _, err := Parse(`{
  "vocab": {
    "global": "one, two, , three",
    "sets": {
      "one": {"phrases": ["one"]},
      "two": {"phrases": ["two"]},
      "three": {"phrases": ["three"]}
    }
  }
}`, Default())
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", "three"}, cfg.Vocab.GlobalSets)
}
