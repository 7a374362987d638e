package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Speech: SpeechConfig{
			LanguageCode:  "es-ES",
			StreamLimitMS: 290_000,
			OpenTimeoutMS: 5_000,
			CommandBoost:  10,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Recognition: RecognitionConfig{
			RestartDelayMS:    300,
			MaxRestartDelayMS: 5_000,
			QuickFailWindowMS: 1_000,
		},
		Meter: MeterConfig{
			Enable:     true,
			IntervalMS: 16,
			Window:     1024,
		},
		Bridge: BridgeConfig{
			Enable:     true,
			Listen:     "127.0.0.1:7645",
			Path:       "/voice",
			SendBuffer: 64,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "vocalnav",
			SoundEnable:    true,
			TextListening:  "Control por voz activado",
			TextDisabled:   "Control por voz desactivado",
			TextError:      "Error de reconocimiento de voz",
			ErrorTimeoutMS: 1600,
		},
		Commands: map[string][]string{},
		Vocab: VocabConfig{
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
	}
}
