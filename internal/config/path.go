package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "vocalnav"

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir, "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", appDir, "config.jsonc"), nil
}

// ResolveStateDir returns cfg.StateDir or the XDG state directory for vocalnav.
func ResolveStateDir(cfg Config) (string, error) {
	if dir := strings.TrimSpace(cfg.StateDir); dir != "" {
		return dir, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for state fallback")
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}
