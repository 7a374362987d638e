// Package config resolves, parses, validates, and defaults vocalnav configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Speech      SpeechConfig
	Audio       AudioConfig
	Recognition RecognitionConfig
	Meter       MeterConfig
	Bridge      BridgeConfig
	Indicator   IndicatorConfig
	Vocabulary  VocabularyConfig
	// Commands overrides built-in command keywords by command id.
	Commands map[string][]string
	Vocab    VocabConfig
	StateDir string
	Debug    DebugConfig
}

// SpeechConfig controls the streaming recognizer client.
type SpeechConfig struct {
	Endpoint             string
	CredentialsFile      string
	Insecure             bool
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	StreamLimitMS        int
	OpenTimeoutMS        int
	CommandBoost         float64
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// RecognitionConfig controls restart pacing and the initial preference.
type RecognitionConfig struct {
	RestartDelayMS    int
	MaxRestartDelayMS int
	QuickFailWindowMS int
	DefaultEnabled    bool
}

// MeterConfig controls the amplitude meter.
type MeterConfig struct {
	Enable     bool
	IntervalMS int
	Window     int
}

// BridgeConfig controls the WebSocket event bridge.
type BridgeConfig struct {
	Enable         bool
	Listen         string
	Path           string
	AllowedOrigins []string
	SendBuffer     int
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable         bool
	DesktopAppName string
	SoundEnable    bool
	TextListening  string
	TextDisabled   string
	TextError      string
	ErrorTimeoutMS int
}

// VocabularyConfig overrides the fallback classifier words. Empty fields keep built-ins.
type VocabularyConfig struct {
	SpecialTokens map[string]string
	// Reserved maps a control (clear, cancel, save, confirm) to its trigger words.
	Reserved map[string][]string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableGRPCDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to the recognizer.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// ReservedControls lists the accepted keys of VocabularyConfig.Reserved.
var ReservedControls = []string{"clear", "cancel", "save", "confirm"}
