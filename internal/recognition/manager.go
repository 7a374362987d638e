// Package recognition keeps one continuous speech session alive while voice control is enabled.
package recognition

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/vocalnav/internal/fsm"
	"github.com/rbright/vocalnav/internal/textnorm"
)

// Utterance is one final transcript delivered downstream.
type Utterance struct {
	Raw        string
	Normalized string
	Generation uint64
	At         time.Time
}

// Listener consumes manager output.
type Listener interface {
	Utterance(Utterance)
	Fatal(error)
}

// Options tunes restart pacing.
type Options struct {
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration
	QuickFailWindow time.Duration
}

// DefaultOptions returns the production restart pacing.
func DefaultOptions() Options {
	return Options{
		RestartDelay:    300 * time.Millisecond,
		MaxRestartDelay: 5 * time.Second,
		QuickFailWindow: time.Second,
	}
}

// Status is a point-in-time manager snapshot.
type Status struct {
	Enabled       bool
	Active        bool
	State         fsm.State
	Generation    uint64
	LastUtterance string
	Restarts      int
	RestartDelay  time.Duration
	LastError     string
}

// Manager owns the lifecycle of the single engine session.
type Manager struct {
	logger *slog.Logger
	engine Engine
	opts   Options

	// engineMu serializes Start/Stop so at most one session is ever open.
	engineMu sync.Mutex

	mu            sync.Mutex
	state         fsm.State
	enabled       bool
	generation    uint64
	listener      Listener
	ctx           context.Context
	cancel        context.CancelFunc
	timer         *time.Timer
	delay         time.Duration
	sessionStart  time.Time
	restarts      int
	lastUtterance string
	lastErr       error
}

// NewManager constructs an idle manager around engine.
func NewManager(logger *slog.Logger, engine Engine, opts Options) *Manager {
	defaults := DefaultOptions()
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaults.RestartDelay
	}
	if opts.MaxRestartDelay < opts.RestartDelay {
		opts.MaxRestartDelay = opts.RestartDelay
	}
	if opts.QuickFailWindow <= 0 {
		opts.QuickFailWindow = defaults.QuickFailWindow
	}

	return &Manager{
		logger: logger,
		engine: engine,
		opts:   opts,
		state:  fsm.StateIdle,
		delay:  opts.RestartDelay,
	}
}

// SetListener installs the downstream consumer.
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Enable starts a session in the background. It is a no-op while enabled.
func (m *Manager) Enable(ctx context.Context) error {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()
		return nil
	}

	next, err := fsm.Transition(m.state, fsm.EventEnable)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	m.enabled = true
	m.generation++
	m.delay = m.opts.RestartDelay
	m.lastErr = nil
	m.ctx, m.cancel = context.WithCancel(ctx)
	gen := m.generation
	m.mu.Unlock()

	m.log(slog.LevelInfo, "recognition enabled", "generation", gen)
	go m.startEngine(gen)
	return nil
}

// Disable tears the session down and cancels pending restarts.
// Utterances from the torn-down session are dropped once Disable has returned.
func (m *Manager) Disable() error {
	m.mu.Lock()
	if !m.enabled && !fsm.Active(m.state) {
		m.mu.Unlock()
		return nil
	}

	m.enabled = false
	m.generation++
	m.stopTimerLocked()
	if next, err := fsm.Transition(m.state, fsm.EventDisable); err == nil {
		m.state = next
	}
	cancel := m.cancel
	m.cancel = nil
	gen := m.generation
	m.mu.Unlock()

	// Cancel first so a Start still in flight unwinds and releases engineMu.
	if cancel != nil {
		cancel()
	}
	m.engineMu.Lock()
	err := m.engine.Stop()
	m.engineMu.Unlock()

	m.log(slog.LevelInfo, "recognition disabled", "generation", gen)
	return err
}

// Live reports whether output from generation gen should still be acted on.
func (m *Manager) Live(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled && gen == m.generation
}

// State returns the current state machine state.
func (m *Manager) State() fsm.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot for IPC and diagnostics.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		Enabled:       m.enabled,
		Active:        fsm.Active(m.state),
		State:         m.state,
		Generation:    m.generation,
		LastUtterance: m.lastUtterance,
		Restarts:      m.restarts,
		RestartDelay:  m.delay,
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}

func (m *Manager) startEngine(gen uint64) {
	m.engineMu.Lock()
	defer m.engineMu.Unlock()

	m.mu.Lock()
	if !m.enabled || gen != m.generation {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	m.sessionStart = time.Now()
	m.mu.Unlock()

	if err := m.engine.Stop(); err != nil {
		m.log(slog.LevelDebug, "stop previous recognition session failed", "error", err.Error())
	}

	err := m.engine.Start(ctx, boundSink{manager: m, generation: gen})
	if err == nil {
		if !m.Live(gen) {
			_ = m.engine.Stop()
		}
		return
	}

	var engineErr *EngineError
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		m.log(slog.LevelWarn, "recognition already running; treating as started", "generation", gen)
		m.handleStarted(gen)
	case errors.As(err, &engineErr) && engineErr.Fatal():
		m.handleFatal(gen, engineErr)
	default:
		m.log(slog.LevelWarn, "recognition start failed; retrying", "generation", gen, "error", err.Error())
		m.mu.Lock()
		if gen == m.generation {
			m.lastErr = err
		}
		m.mu.Unlock()
		m.handleEnded(gen)
	}
}

func (m *Manager) handleStarted(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || !m.enabled {
		return
	}
	if next, err := fsm.Transition(m.state, fsm.EventStarted); err == nil {
		m.state = next
	}
}

func (m *Manager) handleResult(gen uint64, text string) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return
	}

	m.mu.Lock()
	if gen != m.generation || !m.enabled {
		m.mu.Unlock()
		m.log(slog.LevelDebug, "dropping stale utterance", "generation", gen)
		return
	}
	utterance := Utterance{
		Raw:        raw,
		Normalized: textnorm.Normalize(raw),
		Generation: gen,
		At:         time.Now(),
	}
	m.lastUtterance = utterance.Raw
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener.Utterance(utterance)
	}
}

func (m *Manager) handleEnded(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || !m.enabled {
		return
	}

	next, err := fsm.Transition(m.state, fsm.EventEnded)
	if err != nil {
		return
	}
	m.state = next
	m.generation++
	m.restarts++

	if time.Since(m.sessionStart) < m.opts.QuickFailWindow {
		m.delay *= 2
		if m.delay > m.opts.MaxRestartDelay {
			m.delay = m.opts.MaxRestartDelay
		}
	} else {
		m.delay = m.opts.RestartDelay
	}

	restartGen := m.generation
	m.stopTimerLocked()
	m.timer = time.AfterFunc(m.delay, func() { m.startEngine(restartGen) })
	m.log(slog.LevelDebug, "recognition session ended; restarting", "generation", restartGen, "delay", m.delay.String())
}

func (m *Manager) handleFailed(gen uint64, err *EngineError) {
	if err == nil {
		return
	}
	if err.Fatal() {
		m.handleFatal(gen, err)
		return
	}

	m.mu.Lock()
	live := gen == m.generation && m.enabled
	if live {
		m.lastErr = err
	}
	m.mu.Unlock()
	if live {
		m.log(slog.LevelDebug, "transient recognition error ignored", "class", string(err.Class), "error", err.Error())
	}
}

func (m *Manager) handleFatal(gen uint64, err *EngineError) {
	m.mu.Lock()
	if gen != m.generation || !m.enabled {
		m.mu.Unlock()
		return
	}
	if next, terr := fsm.Transition(m.state, fsm.EventFatal); terr == nil {
		m.state = next
	}
	m.enabled = false
	m.generation++
	m.stopTimerLocked()
	m.lastErr = err
	stoppedGen := m.generation
	cancel := m.cancel
	m.cancel = nil
	listener := m.listener
	m.mu.Unlock()

	m.log(slog.LevelError, "recognition stopped on fatal error", "class", string(err.Class), "error", err.Error())

	go func() {
		if cancel != nil {
			cancel()
		}
		m.engineMu.Lock()
		if m.currentGeneration() == stoppedGen {
			_ = m.engine.Stop()
		}
		m.engineMu.Unlock()
		if listener != nil {
			listener.Fatal(err)
		}
	}()
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) log(level slog.Level, msg string, attrs ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), level, msg, attrs...)
}
