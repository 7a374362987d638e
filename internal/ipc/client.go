package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

const defaultClientTimeout = 2 * time.Second

// ErrNoDaemon reports that nothing is accepting connections on the control socket.
var ErrNoDaemon = errors.New("no vocalnav daemon is listening")

// RemoteError is a request the daemon received and refused.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Client issues control requests to the daemon that owns Path. Every call is its
// own connection carrying one request line and one response line.
type Client struct {
	Path    string
	Timeout time.Duration
}

// Do validates req locally, sends it, and turns a refused request into a *RemoteError.
// A socket that is missing or has no listener yields ErrNoDaemon.
func (c Client) Do(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	resp, err := Send(ctx, c.Path, req, c.timeout())
	if err != nil {
		if unreachable(err) {
			return Response{}, fmt.Errorf("%w at %s", ErrNoDaemon, c.Path)
		}
		return Response{}, fmt.Errorf("forward command %q: %w", req.Command, err)
	}
	if !resp.OK {
		return resp, &RemoteError{Command: req.Command, Message: resp.Error}
	}
	return resp, nil
}

// Status reports the daemon's voice state.
func (c Client) Status(ctx context.Context) (Response, error) {
	return c.Do(ctx, Request{Command: CommandStatus})
}

// Say routes text as if it had been recognized and returns the routing outcome.
func (c Client) Say(ctx context.Context, text string) (string, error) {
	resp, err := c.Do(ctx, Request{Command: CommandSay, Text: strings.TrimSpace(text)})
	if err != nil {
		return "", err
	}
	return resp.Outcome, nil
}

// Level returns the current microphone level, or 0 when the meter is not running.
func (c Client) Level(ctx context.Context) (int, error) {
	resp, err := c.Do(ctx, Request{Command: CommandLevel})
	if err != nil {
		return 0, err
	}
	if resp.Level == nil {
		return 0, nil
	}
	return *resp.Level, nil
}

// Responsive reports whether a daemon answers a status request on path.
// A missing socket or one without a listener is not an error.
func Responsive(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	if err == nil {
		return true, nil
	}
	if unreachable(err) {
		return false, nil
	}
	return false, fmt.Errorf("status roundtrip: %w", err)
}

// Send performs one raw request/response exchange bounded by timeout.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func (c Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultClientTimeout
	}
	return c.Timeout
}

// unreachable reports dial failures that mean no daemon owns the socket:
// the path is absent, or it exists with no listener behind it.
func unreachable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
