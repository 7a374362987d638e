package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

const socketName = "vocalnav.sock"

// ErrAlreadyRunning means another daemon answered on the control socket.
var ErrAlreadyRunning = errors.New("vocalnav daemon already running")

// RuntimeSocketPath returns $XDG_RUNTIME_DIR/vocalnav.sock.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// AcquireOptions tunes how a daemon takes over the control socket.
// PingTimeout bounds the status roundtrip used to tell a live owner from a stale file;
// Retries is how many stale files may be reclaimed before giving up.
type AcquireOptions struct {
	PingTimeout time.Duration
	Retries     int
	Logger      *slog.Logger
}

// Owner is a daemon's hold on the control socket. It is the listener handed to Serve.
type Owner struct {
	net.Listener

	path  string
	bound os.FileInfo
	once  sync.Once
}

// Path is the socket path this owner bound.
func (o *Owner) Path() string {
	return o.path
}

// Close stops accepting and unlinks the socket, unless a later daemon has
// already replaced the file at Path. Safe to call more than once.
func (o *Owner) Close() error {
	var err error
	o.once.Do(func() {
		err = o.Listener.Close()
		current, statErr := os.Lstat(o.path)
		if statErr != nil || !os.SameFile(current, o.bound) {
			return
		}
		if rmErr := os.Remove(o.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("remove socket %s: %w", o.path, rmErr)
		}
	})
	return err
}

// Acquire binds path for this daemon. A file left behind by a dead daemon is
// reclaimed; a daemon that still answers status yields ErrAlreadyRunning.
// A socket that accepts but never answers is left alone.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Owner, error) {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		owner, err := bind(path)
		if err == nil {
			return owner, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, pingErr := Responsive(ctx, path, opts.PingTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if pingErr != nil {
			return nil, fmt.Errorf("check existing socket %s: %w", path, pingErr)
		}
		if attempt >= opts.Retries {
			return nil, fmt.Errorf("acquire socket %s: still in use after %d attempts", path, attempt+1)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		logger.Warn("reclaimed stale control socket", "path", path, "attempt", attempt+1)

		timer := time.NewTimer(time.Duration(25*(attempt+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// bind listens on path with owner-only permissions. Unlinking is left to Owner.Close.
func bind(path string) (*Owner, error) {
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	listener.SetUnlinkOnClose(false)

	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("restrict socket %s: %w", path, err)
	}
	info, err := os.Lstat(path)
	if err != nil {
		_ = listener.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("stat socket %s: %w", path, err)
	}
	return &Owner{Listener: listener, path: path, bound: info}, nil
}
