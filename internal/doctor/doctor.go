// Package doctor runs runtime readiness diagnostics for config, audio, speech, and the bridge.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/vocalnav/internal/audio"
	"github.com/rbright/vocalnav/internal/config"
)

// DefaultSpeechEndpoint is dialed when speech.endpoint is unset.
const DefaultSpeechEndpoint = "speech.googleapis.com:443"

const dialTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = fmt.Sprintf("%q not found, using defaults", cfg.Path)
	}
	if len(cfg.Warnings) > 0 {
		configMessage += fmt.Sprintf(" (%d warnings)", len(cfg.Warnings))
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the control socket", "XDG_RUNTIME_DIR is empty"))

	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkSpeechEndpoint(cfg.Config))
	checks = append(checks, checkSpeechCredentials(cfg.Config))
	if cfg.Config.Bridge.Enable {
		checks = append(checks, checkBridgeListen(cfg.Config))
	}
	checks = append(checks, checkStateDir(cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), audio.Policy{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Purpose: audio.ForRecognition})
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSpeechEndpoint verifies the recognizer endpoint accepts TCP connections.
func checkSpeechEndpoint(cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.Speech.Endpoint)
	if endpoint == "" {
		endpoint = DefaultSpeechEndpoint
	}
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		return Check{Name: "speech.endpoint", Pass: false, Message: fmt.Sprintf("invalid endpoint %q: %v", endpoint, err)}
	}

	conn, err := net.DialTimeout("tcp", endpoint, dialTimeout)
	if err != nil {
		return Check{Name: "speech.endpoint", Pass: false, Message: fmt.Sprintf("dial %s: %v", endpoint, err)}
	}
	_ = conn.Close()
	return Check{Name: "speech.endpoint", Pass: true, Message: fmt.Sprintf("reachable at %s", endpoint)}
}

// checkSpeechCredentials verifies a credentials file exists unless running insecure.
func checkSpeechCredentials(cfg config.Config) Check {
	if cfg.Speech.Insecure {
		return Check{Name: "speech.credentials", Pass: true, Message: "insecure mode, credentials not used"}
	}

	path := strings.TrimSpace(cfg.Speech.CredentialsFile)
	source := "speech.credentials_file"
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		source = "GOOGLE_APPLICATION_CREDENTIALS"
	}
	if path == "" {
		return Check{Name: "speech.credentials", Pass: false, Message: "no credentials file configured"}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: "speech.credentials", Pass: false, Message: fmt.Sprintf("%s %q: %v", source, path, err)}
	}
	if info.IsDir() {
		return Check{Name: "speech.credentials", Pass: false, Message: fmt.Sprintf("%s %q is a directory", source, path)}
	}
	return Check{Name: "speech.credentials", Pass: true, Message: fmt.Sprintf("found %q via %s", path, source)}
}

// checkBridgeListen verifies the bridge address can be bound.
func checkBridgeListen(cfg config.Config) Check {
	listener, err := net.Listen("tcp", cfg.Bridge.Listen)
	if err != nil {
		if isAddrInUse(err) {
			return Check{Name: "bridge.listen", Pass: false, Message: fmt.Sprintf("%s already in use (daemon running?)", cfg.Bridge.Listen)}
		}
		return Check{Name: "bridge.listen", Pass: false, Message: err.Error()}
	}
	_ = listener.Close()
	return Check{Name: "bridge.listen", Pass: true, Message: fmt.Sprintf("%s available", cfg.Bridge.Listen)}
}

// checkStateDir verifies the preference store directory is writable.
func checkStateDir(cfg config.Config) Check {
	dir, err := config.ResolveStateDir(cfg)
	if err != nil {
		return Check{Name: "state.dir", Pass: false, Message: err.Error()}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "state.dir", Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}

	marker, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{Name: "state.dir", Pass: false, Message: fmt.Sprintf("write %s: %v", dir, err)}
	}
	name := marker.Name()
	_ = marker.Close()
	_ = os.Remove(name)
	return Check{Name: "state.dir", Pass: true, Message: fmt.Sprintf("writable at %s", filepath.Clean(dir))}
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use")
	}
	return false
}
