package app

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/vocalnav/internal/ipc"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Contains(t, stdout.String(), "say TEXT")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "vocalnav")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"speech": {"language_code": ""}}`), 0o600))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "language_code")
}

func TestRunnerStatusNotRunningWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "not running\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerClientCommandsRequireDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	for _, args := range [][]string{{"enable"}, {"disable"}, {"toggle"}, {"level"}, {"say", "ayuda"}} {
		var stderr bytes.Buffer
		runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
		require.Equal(t, 1, exitCode, args)
		require.Contains(t, stderr.String(), "no running vocalnav daemon", args)
	}
}

func TestRunnerForwardsCommandsToDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "vocalnav.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		enabled := req.Command != ipc.CommandDisable
		level := 64
		switch req.Command {
		case ipc.CommandStatus, ipc.CommandEnable, ipc.CommandDisable, ipc.CommandToggle:
			return ipc.Response{OK: true, State: "listening", Enabled: &enabled, Generation: 4}
		case ipc.CommandLevel:
			return ipc.Response{OK: true, Level: &level}
		case ipc.CommandSay:
			return ipc.Response{OK: true, Outcome: "open-help"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"status"}, want: "state=listening enabled=true generation=4\n"},
		{args: []string{"enable"}, want: "state=listening enabled=true generation=4\n"},
		{args: []string{"disable"}, want: "state=listening enabled=false generation=4\n"},
		{args: []string{"toggle"}, want: "state=listening enabled=true generation=4\n"},
		{args: []string{"level"}, want: "64\n"},
		{args: []string{"say", "abrir", "ayuda"}, want: "open-help\n"},
	}

	for _, tc := range tests {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner := Runner{Stdout: stdout, Stderr: stderr}

		exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, tc.args...))
		require.Equal(t, 0, exitCode, tc.args)
		require.Empty(t, stderr.String(), tc.args)
		require.Equal(t, tc.want, stdout.String(), tc.args)
	}

	got := make([]ipc.Request, 0, len(tests))
	for range tests {
		got = append(got, <-requests)
	}
	require.Equal(t, ipc.Request{Command: ipc.CommandSay, Text: "abrir ayuda"}, got[len(got)-1])
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "vocalnav.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	serverCtx, cancelServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- ipc.Serve(serverCtx, listener, ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
			switch req.Command {
			case ipc.CommandStatus:
				return ipc.Response{OK: true, State: "listening"}
			default:
				return ipc.Response{OK: false, Error: "unsupported"}
			}
		}))
	}()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "listening", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandToggle})
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported")

	cancelServer()
	require.NoError(t, <-serverDone)
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "vocalnav.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "vocalnav.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "[OK] config: loaded")
	require.Contains(t, stdout.String(), "XDG_RUNTIME_DIR")
	require.Contains(t, stdout.String(), "[FAIL] audio.device")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestFormatStatus(t *testing.T) {
	enabled := false
	level := 0
	require.Equal(t, "state=idle", formatStatus(ipc.Response{}))
	require.Equal(t, "state=stopped enabled=false level=0 generation=9", formatStatus(ipc.Response{
		State:      "stopped",
		Enabled:    &enabled,
		Level:      &level,
		Generation: 9,
	}))
}

type runnerPaths struct {
	configPath string
	runtimeDir string
	stateDir   string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("VOCALNAV_LOG_LEVEL", "")

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte("{}\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir, stateDir: filepath.Join(xdgStateHome, "vocalnav")}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
