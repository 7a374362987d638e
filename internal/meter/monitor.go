// Package meter computes a live microphone amplitude level for UI feedback.
package meter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is roughly one animation frame.
const DefaultInterval = 16 * time.Millisecond

// DefaultWindow is the number of samples analyzed per tick.
const DefaultWindow = 1024

// Stream exposes the latest captured samples.
type Stream interface {
	// Window appends up to the most recent window of samples to dst.
	Window(dst []float64) []float64
	Close() error
}

// Source opens exclusive microphone streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(context.Context) (Stream, error)

// Open implements Source.
func (f SourceFunc) Open(ctx context.Context) (Stream, error) { return f(ctx) }

// Monitor samples one stream on a fixed cadence while enabled.
type Monitor struct {
	logger   *slog.Logger
	source   Source
	interval time.Duration
	size     int

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	stream    Stream

	level   atomic.Int32
	onLevel atomic.Pointer[func(int)]
}

// NewMonitor constructs a disabled monitor.
func NewMonitor(logger *slog.Logger, source Source, interval time.Duration, size int) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if size <= 0 {
		size = DefaultWindow
	}
	return &Monitor{
		logger:   logger,
		source:   source,
		interval: interval,
		size:     size,
	}
}

// OnLevel registers a callback receiving every computed sample.
func (m *Monitor) OnLevel(fn func(int)) {
	if fn == nil {
		m.onLevel.Store(nil)
		return
	}
	m.onLevel.Store(&fn)
}

// Level returns the latest sample; zero while disabled.
func (m *Monitor) Level() int {
	return int(m.level.Load())
}

// Active reports whether a stream is open.
func (m *Monitor) Active() bool {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.stream != nil
}

// Enable opens a fresh stream, tearing down any previous one first.
func (m *Monitor) Enable(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.teardownLocked()

	stream, err := m.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("open level stream: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.stream = stream

	go m.loop(loopCtx, stream, done)
	return nil
}

// Disable stops sampling and releases the stream. It is safe to call repeatedly.
func (m *Monitor) Disable() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.teardownLocked()
}

func (m *Monitor) teardownLocked() {
	if m.stream == nil {
		return
	}

	m.cancel()
	<-m.done
	if err := m.stream.Close(); err != nil && m.logger != nil {
		m.logger.Warn("close level stream failed", "error", err.Error())
	}

	m.cancel = nil
	m.done = nil
	m.stream = nil
	m.level.Store(0)
}

func (m *Monitor) loop(ctx context.Context, stream Stream, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	buf := make([]float64, 0, m.size)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			buf = stream.Window(buf[:0])
			level := Level(buf)
			m.level.Store(int32(level))
			if fn := m.onLevel.Load(); fn != nil {
				(*fn)(level)
			}
		}
	}
}
