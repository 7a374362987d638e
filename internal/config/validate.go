package config

import (
	"fmt"
	"net"
	"slices"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Speech.LanguageCode) == "" {
		return nil, fmt.Errorf("speech.language_code must not be empty")
	}
	if cfg.Speech.StreamLimitMS <= 0 {
		return nil, fmt.Errorf("speech.stream_limit_ms must be > 0")
	}
	if cfg.Speech.StreamLimitMS > 300_000 {
		warnings = append(warnings, Warning{Message: "speech.stream_limit_ms exceeds the service stream cap; sessions will be cut by the server"})
	}
	if cfg.Speech.OpenTimeoutMS < 0 {
		return nil, fmt.Errorf("speech.open_timeout_ms must be >= 0")
	}
	if cfg.Speech.CommandBoost < 0 {
		return nil, fmt.Errorf("speech.command_boost must be >= 0")
	}
	if cfg.Speech.Insecure && strings.TrimSpace(cfg.Speech.Endpoint) == "" {
		return nil, fmt.Errorf("speech.insecure requires speech.endpoint")
	}

	if cfg.Recognition.RestartDelayMS <= 0 {
		return nil, fmt.Errorf("recognition.restart_delay_ms must be > 0")
	}
	if cfg.Recognition.MaxRestartDelayMS < cfg.Recognition.RestartDelayMS {
		return nil, fmt.Errorf("recognition.max_restart_delay_ms must be >= recognition.restart_delay_ms")
	}
	if cfg.Recognition.QuickFailWindowMS <= 0 {
		return nil, fmt.Errorf("recognition.quick_fail_window_ms must be > 0")
	}

	if cfg.Meter.IntervalMS <= 0 {
		return nil, fmt.Errorf("meter.interval_ms must be > 0")
	}
	if cfg.Meter.Window < 2 {
		return nil, fmt.Errorf("meter.window must be >= 2")
	}

	if cfg.Bridge.Enable {
		if _, _, err := net.SplitHostPort(cfg.Bridge.Listen); err != nil {
			return nil, fmt.Errorf("bridge.listen %q: %w", cfg.Bridge.Listen, err)
		}
		if !strings.HasPrefix(cfg.Bridge.Path, "/") {
			return nil, fmt.Errorf("bridge.path must start with '/'")
		}
		if cfg.Bridge.SendBuffer <= 0 {
			return nil, fmt.Errorf("bridge.send_buffer must be > 0")
		}
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	for control := range cfg.Vocabulary.Reserved {
		if !slices.Contains(ReservedControls, control) {
			return nil, fmt.Errorf("vocabulary.reserved has unknown control %q (want one of: %s)", control, strings.Join(ReservedControls, ", "))
		}
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic recognizer phrase payloads.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	if len(cfg.Vocab.GlobalSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range cfg.Vocab.GlobalSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			existing, exists := selected[phrase]
			if !exists {
				selected[phrase] = candidate{boost: set.Boost, from: name}
				continue
			}
			if set.Boost > existing.boost {
				warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
				selected[phrase] = candidate{boost: set.Boost, from: name}
			}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}
	sort.Slice(phrases, func(i, j int) bool { return phrases[i].Phrase < phrases[j].Phrase })

	return phrases, warnings, nil
}
