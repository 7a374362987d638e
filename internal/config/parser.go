package config

import "strings"

// Parse reads JSONC configuration content (comments and trailing commas allowed) over base.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	var payload jsoncConfig
	if err := decodeJSONC(content, &payload); err != nil {
		return Config{}, nil, err
	}

	cfg := cloneConfig(base)
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}

// cloneConfig copies the maps that applyTo mutates so base stays untouched.
func cloneConfig(base Config) Config {
	cfg := base
	cfg.Commands = make(map[string][]string, len(base.Commands))
	for id, keywords := range base.Commands {
		cfg.Commands[id] = append([]string(nil), keywords...)
	}
	cfg.Vocab.Sets = make(map[string]VocabSet, len(base.Vocab.Sets))
	for name, set := range base.Vocab.Sets {
		cfg.Vocab.Sets[name] = set
	}
	cfg.Vocab.GlobalSets = append([]string(nil), base.Vocab.GlobalSets...)
	cfg.Bridge.AllowedOrigins = append([]string(nil), base.Bridge.AllowedOrigins...)
	return cfg
}
