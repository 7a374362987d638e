package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "vocalnav.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			require.Equal(t, "status", req.Command)
			return Response{OK: true, State: "listening", Message: "ok"}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "listening", resp.State)
	require.Equal(t, "ok", resp.Message)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendDecodeResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "vocalnav.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "vocalnav.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "vocalnav.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, _ Request) Response {
			return Response{OK: true}
		}))
	}()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")

	cancel()
	require.NoError(t, <-serveDone)
}

func TestResponsive(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "vocalnav.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == "status" {
				return Response{OK: true, State: "idle"}
			}
			return Response{OK: false, Error: "bad"}
		}))
	}()

	alive, pingErr := Responsive(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, pingErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, pingErr = Responsive(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, pingErr)
	require.False(t, alive)
}

func TestSendCarriesSayTextAndLevel(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "vocalnav.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Request, 1)
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			received <- req
			level := 42
			return Response{OK: true, Level: &level, Outcome: "open-help"}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandSay, Text: "ayuda"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.NotNil(t, resp.Level)
	require.Equal(t, 42, *resp.Level)
	require.Equal(t, "open-help", resp.Outcome)
	require.Equal(t, Request{Command: CommandSay, Text: "ayuda"}, <-received)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestServeRejectsInvalidRequestBeforeHandler(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "vocalnav.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, _ Request) Response {
			t.Error("handler must not run for invalid requests")
			return Response{OK: true}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: "explode"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")

	resp, err = Send(context.Background(), socketPath, Request{Command: CommandSay, Text: "  "}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "say requires text")

	cancel()
	require.NoError(t, <-serveDone)
}

func serveForClient(t *testing.T, handler HandlerFunc) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "vocalnav.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, handler)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
	})
	return socketPath
}

func TestClientSaySendsTrimmedTextAndReturnsOutcome(t *testing.T) {
	received := make(chan Request, 1)
	socketPath := serveForClient(t, func(_ context.Context, req Request) Response {
		received <- req
		return Response{OK: true, Outcome: "close-dialog"}
	})

	client := Client{Path: socketPath, Timeout: 200 * time.Millisecond}
	outcome, err := client.Say(context.Background(), "  por favor cancelarlo \n")
	require.NoError(t, err)
	require.Equal(t, "close-dialog", outcome)
	require.Equal(t, Request{Command: CommandSay, Text: "por favor cancelarlo"}, <-received)
}

func TestClientSayRejectsBlankTextWithoutDialing(t *testing.T) {
	client := Client{Path: filepath.Join(t.TempDir(), "vocalnav.sock")}
	_, err := client.Say(context.Background(), "   ")
	require.ErrorContains(t, err, "say requires text")
	require.NotErrorIs(t, err, ErrNoDaemon)
}

func TestClientRefusedRequestIsRemoteError(t *testing.T) {
	socketPath := serveForClient(t, func(_ context.Context, _ Request) Response {
		return Response{OK: false, Error: "voice is disabled"}
	})

	_, err := Client{Path: socketPath}.Say(context.Background(), "guardar")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, CommandSay, remote.Command)
	require.Equal(t, "voice is disabled", err.Error())
}

func TestClientLevelAndStatus(t *testing.T) {
	socketPath := serveForClient(t, func(_ context.Context, req Request) Response {
		if req.Command == CommandLevel {
			level := 73
			return Response{OK: true, Level: &level}
		}
		return Response{OK: true, State: "listening"}
	})

	client := Client{Path: socketPath}
	level, err := client.Level(context.Background())
	require.NoError(t, err)
	require.Equal(t, 73, level)

	resp, err := client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "listening", resp.State)
}

func TestClientReportsNoDaemon(t *testing.T) {
	dir := t.TempDir()

	_, err := Client{Path: filepath.Join(dir, "missing.sock")}.Status(context.Background())
	require.ErrorIs(t, err, ErrNoDaemon)

	stale := filepath.Join(dir, "vocalnav.sock")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o600))
	_, err = Client{Path: stale}.Status(context.Background())
	require.ErrorIs(t, err, ErrNoDaemon)
}

func TestServeDropsSilentClient(t *testing.T) {
	socketPath := serveForClient(t, func(_ context.Context, _ Request) Response {
		return Response{OK: true}
	})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(requestTimeout+time.Second)))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "read request")
}
