package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsoncConfig struct {
	Speech      *jsoncSpeech      `json:"speech"`
	Audio       *jsoncAudio       `json:"audio"`
	Recognition *jsoncRecognition `json:"recognition"`
	Meter       *jsoncMeter       `json:"meter"`
	Bridge      *jsoncBridge      `json:"bridge"`
	Indicator   *jsoncIndicator   `json:"indicator"`
	Vocabulary  *jsoncVocabulary  `json:"vocabulary"`

	Commands map[string]jsoncStringList `json:"commands"`
	Vocab    *jsoncVocab                `json:"vocab"`
	StateDir *string                    `json:"state_dir"`
	Debug    *jsoncDebug                `json:"debug"`
}

type jsoncSpeech struct {
	Endpoint             *string  `json:"endpoint"`
	CredentialsFile      *string  `json:"credentials_file"`
	Insecure             *bool    `json:"insecure"`
	LanguageCode         *string  `json:"language_code"`
	Model                *string  `json:"model"`
	AutomaticPunctuation *bool    `json:"automatic_punctuation"`
	StreamLimitMS        *int     `json:"stream_limit_ms"`
	OpenTimeoutMS        *int     `json:"open_timeout_ms"`
	CommandBoost         *float64 `json:"command_boost"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncRecognition struct {
	RestartDelayMS    *int  `json:"restart_delay_ms"`
	MaxRestartDelayMS *int  `json:"max_restart_delay_ms"`
	QuickFailWindowMS *int  `json:"quick_fail_window_ms"`
	DefaultEnabled    *bool `json:"default_enabled"`
}

type jsoncMeter struct {
	Enable     *bool `json:"enable"`
	IntervalMS *int  `json:"interval_ms"`
	Window     *int  `json:"window"`
}

type jsoncBridge struct {
	Enable         *bool            `json:"enable"`
	Listen         *string          `json:"listen"`
	Path           *string          `json:"path"`
	AllowedOrigins *jsoncStringList `json:"allowed_origins"`
	SendBuffer     *int             `json:"send_buffer"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	TextListening  *string `json:"text_listening"`
	TextDisabled   *string `json:"text_disabled"`
	TextError      *string `json:"text_error"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncVocabulary struct {
	SpecialTokens map[string]string          `json:"special_tokens"`
	Reserved      map[string]jsoncStringList `json:"reserved"`
}

type jsoncVocab struct {
	Global     *jsoncStringList         `json:"global"`
	MaxPhrases *int                     `json:"max_phrases"`
	Sets       map[string]jsoncVocabSet `json:"sets"`
}

type jsoncVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type jsoncDebug struct {
	GRPCDump *bool `json:"grpc_dump"`
}

// jsoncStringList accepts either a string array or one comma-delimited string.
type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = trimList(list)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = trimList(strings.Split(single, ","))
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if s := payload.Speech; s != nil {
		setString(&cfg.Speech.Endpoint, s.Endpoint)
		setString(&cfg.Speech.CredentialsFile, s.CredentialsFile)
		setBool(&cfg.Speech.Insecure, s.Insecure)
		setString(&cfg.Speech.LanguageCode, s.LanguageCode)
		setString(&cfg.Speech.Model, s.Model)
		setBool(&cfg.Speech.AutomaticPunctuation, s.AutomaticPunctuation)
		setInt(&cfg.Speech.StreamLimitMS, s.StreamLimitMS)
		setInt(&cfg.Speech.OpenTimeoutMS, s.OpenTimeoutMS)
		if s.CommandBoost != nil {
			cfg.Speech.CommandBoost = *s.CommandBoost
		}
		if cfg.Speech.AutomaticPunctuation {
			warnings = append(warnings, Warning{Message: "speech.automatic_punctuation=true can prevent exact matches on spoken tokens such as \"punto\""})
		}
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if r := payload.Recognition; r != nil {
		setInt(&cfg.Recognition.RestartDelayMS, r.RestartDelayMS)
		setInt(&cfg.Recognition.MaxRestartDelayMS, r.MaxRestartDelayMS)
		setInt(&cfg.Recognition.QuickFailWindowMS, r.QuickFailWindowMS)
		setBool(&cfg.Recognition.DefaultEnabled, r.DefaultEnabled)
	}

	if m := payload.Meter; m != nil {
		setBool(&cfg.Meter.Enable, m.Enable)
		setInt(&cfg.Meter.IntervalMS, m.IntervalMS)
		setInt(&cfg.Meter.Window, m.Window)
	}

	if b := payload.Bridge; b != nil {
		setBool(&cfg.Bridge.Enable, b.Enable)
		setString(&cfg.Bridge.Listen, b.Listen)
		setString(&cfg.Bridge.Path, b.Path)
		if b.AllowedOrigins != nil {
			cfg.Bridge.AllowedOrigins = append([]string(nil), (*b.AllowedOrigins)...)
		}
		setInt(&cfg.Bridge.SendBuffer, b.SendBuffer)
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.TextListening, i.TextListening)
		setString(&cfg.Indicator.TextDisabled, i.TextDisabled)
		setString(&cfg.Indicator.TextError, i.TextError)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if v := payload.Vocabulary; v != nil {
		if v.SpecialTokens != nil {
			cfg.Vocabulary.SpecialTokens = make(map[string]string, len(v.SpecialTokens))
			for word, text := range v.SpecialTokens {
				word = strings.TrimSpace(word)
				if word == "" {
					return nil, fmt.Errorf("vocabulary.special_tokens contains an empty word")
				}
				cfg.Vocabulary.SpecialTokens[word] = text
			}
		}
		if v.Reserved != nil {
			cfg.Vocabulary.Reserved = make(map[string][]string, len(v.Reserved))
			for control, words := range v.Reserved {
				cfg.Vocabulary.Reserved[strings.ToLower(strings.TrimSpace(control))] = append([]string(nil), words...)
			}
		}
	}

	for id, keywords := range payload.Commands {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("commands contains an empty command id")
		}
		if len(keywords) == 0 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("commands.%s has no keywords; keeping built-in keywords", id)})
			continue
		}
		cfg.Commands[id] = append([]string(nil), keywords...)
	}

	if v := payload.Vocab; v != nil {
		if v.Global != nil {
			cfg.Vocab.GlobalSets = append([]string(nil), (*v.Global)...)
		}
		setInt(&cfg.Vocab.MaxPhrases, v.MaxPhrases)
		for name, set := range v.Sets {
			trimmedName := strings.TrimSpace(name)
			if trimmedName == "" {
				return nil, fmt.Errorf("vocab.sets contains an empty set name")
			}
			entry := VocabSet{Name: trimmedName, Phrases: append([]string(nil), set.Phrases...)}
			if set.Boost != nil {
				entry.Boost = *set.Boost
			}
			cfg.Vocab.Sets[trimmedName] = entry
		}
	}

	setString(&cfg.StateDir, payload.StateDir)

	if payload.Debug != nil {
		setBool(&cfg.Debug.EnableGRPCDump, payload.Debug.GRPCDump)
	}

	return warnings, nil
}
