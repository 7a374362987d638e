package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/vocalnav/internal/ipc"
)

const forwardTimeout = 2 * time.Second

var errNoDaemon = errors.New("no running vocalnav daemon (start one with `vocalnav run`)")

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus})
	if !handled {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintln(r.Stdout, formatStatus(resp))
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandPreference(ctx context.Context, command string) int {
	resp, code := r.forward(ctx, ipc.Request{Command: command})
	if code != 0 {
		return code
	}
	fmt.Fprintln(r.Stdout, formatStatus(resp))
	return 0
}

func (r Runner) commandLevel(ctx context.Context) int {
	client, code := r.client()
	if code != 0 {
		return code
	}
	level, err := client.Level(ctx)
	if code := r.report(err); code != 0 {
		return code
	}
	fmt.Fprintln(r.Stdout, level)
	return 0
}

func (r Runner) commandSay(ctx context.Context, text string) int {
	client, code := r.client()
	if code != 0 {
		return code
	}
	outcome, err := client.Say(ctx, text)
	if code := r.report(err); code != 0 {
		return code
	}
	fmt.Fprintln(r.Stdout, outcome)
	return 0
}

func (r Runner) client() (ipc.Client, int) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Client{}, 1
	}
	return ipc.Client{Path: socketPath, Timeout: forwardTimeout}, 0
}

// report prints err on stderr and maps it to an exit code.
func (r Runner) report(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ipc.ErrNoDaemon):
		fmt.Fprintf(r.Stderr, "error: %v\n", errNoDaemon)
	default:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
	}
	return 1
}

// forward sends req to the daemon and reports errors on stderr.
func (r Runner) forward(ctx context.Context, req ipc.Request) (ipc.Response, int) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: %v\n", errNoDaemon)
		return ipc.Response{}, 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return resp, 1
	}
	return resp, 0
}

func formatStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	parts := []string{"state=" + state}
	if resp.Enabled != nil {
		parts = append(parts, fmt.Sprintf("enabled=%t", *resp.Enabled))
	}
	if resp.Level != nil {
		parts = append(parts, fmt.Sprintf("level=%d", *resp.Level))
	}
	if resp.Generation > 0 {
		parts = append(parts, fmt.Sprintf("generation=%d", resp.Generation))
	}
	return strings.Join(parts, " ")
}

// tryForward reports handled=false when no daemon owns socketPath.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Client{Path: socketPath, Timeout: forwardTimeout}.Do(ctx, req)
	if errors.Is(err, ipc.ErrNoDaemon) {
		return ipc.Response{}, false, nil
	}
	return resp, true, err
}
