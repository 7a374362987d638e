package doctor

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/vocalnav/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.HasPrefix(v, "/run") },
		"looks good",
		"unexpected",
	)
	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)

	t.Setenv("TEST_DOCTOR_ENV", "")
	check = checkEnv("TEST_DOCTOR_ENV", func(v string) bool { return v != "" }, "ok", "missing")
	require.False(t, check.Pass)
	require.Equal(t, "missing", check.Message)
}

func TestCheckSpeechEndpointReachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	cfg := config.Default()
	cfg.Speech.Endpoint = listener.Addr().String()

	check := checkSpeechEndpoint(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "reachable at")
}

func TestCheckSpeechEndpointUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	cfg := config.Default()
	cfg.Speech.Endpoint = addr

	check := checkSpeechEndpoint(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "dial "+addr)
}

func TestCheckSpeechEndpointInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.Endpoint = "no-port"

	check := checkSpeechEndpoint(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "invalid endpoint")
}

func TestCheckSpeechCredentials(t *testing.T) {
	dir := t.TempDir()
	credentials := filepath.Join(dir, "sa.json")
	require.NoError(t, os.WriteFile(credentials, []byte("{}"), 0o600))

	tests := []struct {
		name     string
		file     string
		env      string
		insecure bool
		wantPass bool
		wantMsg  string
	}{
		{name: "insecure", insecure: true, wantPass: true, wantMsg: "insecure mode"},
		{name: "config file", file: credentials, wantPass: true, wantMsg: "via speech.credentials_file"},
		{name: "env file", env: credentials, wantPass: true, wantMsg: "via GOOGLE_APPLICATION_CREDENTIALS"},
		{name: "missing file", file: filepath.Join(dir, "missing.json"), wantMsg: "missing.json"},
		{name: "directory", file: dir, wantMsg: "is a directory"},
		{name: "nothing configured", wantMsg: "no credentials file configured"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", tc.env)
			cfg := config.Default()
			cfg.Speech.CredentialsFile = tc.file
			cfg.Speech.Insecure = tc.insecure

			check := checkSpeechCredentials(cfg)
			require.Equal(t, tc.wantPass, check.Pass)
			require.Contains(t, check.Message, tc.wantMsg)
		})
	}
}

func TestCheckBridgeListen(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	cfg := config.Default()
	cfg.Bridge.Listen = listener.Addr().String()
	check := checkBridgeListen(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "already in use")

	cfg.Bridge.Listen = "127.0.0.1:0"
	check = checkBridgeListen(cfg)
	require.True(t, check.Pass)
}

func TestCheckStateDirWritable(t *testing.T) {
	cfg := config.Default()
	cfg.StateDir = filepath.Join(t.TempDir(), "state")

	check := checkStateDir(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, cfg.StateDir)

	entries, err := os.ReadDir(cfg.StateDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(config.Default())
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
}

func TestRunSkipsBridgeWhenDisabled(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	cfg := config.Default()
	cfg.Bridge.Enable = false
	cfg.Speech.Endpoint = listener.Addr().String()
	cfg.Speech.Insecure = true
	cfg.StateDir = t.TempDir()

	report := Run(config.Loaded{Path: "/tmp/config.jsonc", Config: cfg, Exists: true})

	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"config", "XDG_RUNTIME_DIR", "audio.device", "speech.endpoint", "speech.credentials", "state.dir"}, names)
	require.False(t, report.OK())
}
