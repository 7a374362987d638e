// Package voice owns the voice-control preference and wires recognition output to dispatch.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/vocalnav/internal/bus"
	"github.com/rbright/vocalnav/internal/classify"
	"github.com/rbright/vocalnav/internal/command"
	"github.com/rbright/vocalnav/internal/indicator"
	"github.com/rbright/vocalnav/internal/recognition"
)

// Recognizer is the session manager surface the coordinator drives.
type Recognizer interface {
	SetListener(recognition.Listener)
	Enable(context.Context) error
	Disable() error
	Live(generation uint64) bool
	Status() recognition.Status
}

// LevelMeter is the amplitude monitor surface the coordinator drives.
type LevelMeter interface {
	Enable(context.Context) error
	Disable()
	Level() int
}

// Router resolves an utterance against the mounted commands.
type Router interface {
	Route(utterance string) command.Outcome
}

// Classifier maps an unmatched utterance to a fallback event.
type Classifier interface {
	Classify(raw string) classify.Result
}

// Publisher delivers fallback events.
type Publisher interface {
	Publish(name bus.Name, detail any) error
}

// Preferences persists the enable flag.
type Preferences interface {
	SetEnabled(enabled bool) error
}

// Deps are the collaborators a Coordinator drives. Meter, Preferences, and Indicator may be nil.
type Deps struct {
	Logger      *slog.Logger
	Recognizer  Recognizer
	Meter       LevelMeter
	Router      Router
	Classifier  Classifier
	Publisher   Publisher
	Preferences Preferences
	Indicator   indicator.Controller
}

// Outcome labels for utterances that did not reach a command or event.
const (
	OutcomeIgnored = "ignored"
)

// Status is the coordinator snapshot served over IPC and the bridge.
type Status struct {
	Enabled       bool
	State         string
	Generation    uint64
	Level         int
	LastUtterance string
	LastOutcome   string
	LastError     string
	Restarts      int
	UpdatedAt     time.Time
}

// Coordinator issues explicit enable/disable calls to recognition and metering.
type Coordinator struct {
	deps Deps

	// lifecycle serializes preference changes and fatal handling; it is never
	// taken on the utterance path, which may run inside an engine stop.
	lifecycle sync.Mutex

	mu          sync.Mutex
	enabled     bool
	lastErr     string
	lastOutcome string
	lastText    string
	updatedAt   time.Time

	observers []func(Status)
}

// New wires a coordinator and registers it as the recognizer's listener.
func New(deps Deps) (*Coordinator, error) {
	if deps.Recognizer == nil {
		return nil, errors.New("voice: recognizer is required")
	}
	if deps.Router == nil || deps.Classifier == nil || deps.Publisher == nil {
		return nil, errors.New("voice: router, classifier, and publisher are required")
	}
	if deps.Indicator == nil {
		deps.Indicator = indicator.Nop{}
	}

	c := &Coordinator{deps: deps, updatedAt: time.Now()}
	deps.Recognizer.SetListener(c)
	return c, nil
}

// OnStatus registers fn to receive a snapshot after every preference or error change.
func (c *Coordinator) OnStatus(fn func(Status)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Restore applies a stored preference at startup without re-persisting it.
func (c *Coordinator) Restore(ctx context.Context, enabled bool) error {
	return c.apply(ctx, enabled, false)
}

// SetEnabled turns recognition and metering on or off and persists the choice.
func (c *Coordinator) SetEnabled(ctx context.Context, enabled bool) error {
	return c.apply(ctx, enabled, true)
}

// Toggle flips the current preference and returns the new value.
func (c *Coordinator) Toggle(ctx context.Context) (bool, error) {
	c.mu.Lock()
	next := !c.enabled
	c.mu.Unlock()
	return next, c.SetEnabled(ctx, next)
}

// Enabled reports the current preference.
func (c *Coordinator) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Coordinator) apply(ctx context.Context, enabled bool, persist bool) error {
	c.lifecycle.Lock()
	c.mu.Lock()
	current := c.enabled
	c.mu.Unlock()
	if current == enabled && (!enabled || c.deps.Recognizer.Status().Enabled) {
		c.lifecycle.Unlock()
		return nil
	}

	c.mu.Lock()
	c.enabled = enabled
	if enabled {
		c.lastErr = ""
	}
	c.updatedAt = time.Now()
	c.mu.Unlock()

	var errs []error
	if persist && c.deps.Preferences != nil {
		if err := c.deps.Preferences.SetEnabled(enabled); err != nil {
			errs = append(errs, fmt.Errorf("persist preference: %w", err))
		}
	}

	if enabled {
		if err := c.deps.Recognizer.Enable(ctx); err != nil {
			errs = append(errs, fmt.Errorf("enable recognition: %w", err))
		}
		if c.deps.Meter != nil {
			if err := c.deps.Meter.Enable(ctx); err != nil {
				c.log(slog.LevelWarn, "level meter unavailable", "error", err.Error())
			}
		}
	} else {
		if err := c.deps.Recognizer.Disable(); err != nil {
			errs = append(errs, fmt.Errorf("disable recognition: %w", err))
		}
		if c.deps.Meter != nil {
			c.deps.Meter.Disable()
		}
	}
	c.lifecycle.Unlock()

	if enabled {
		c.deps.Indicator.ShowListening(ctx)
	} else {
		c.deps.Indicator.ShowDisabled(ctx)
	}
	c.log(slog.LevelInfo, "voice preference applied", "enabled", enabled, "persisted", persist)
	c.notify()
	return errors.Join(errs...)
}

// Shutdown stops recognition and metering for process exit. The stored
// preference is left as is so the next start restores it.
func (c *Coordinator) Shutdown() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if err := c.deps.Recognizer.Disable(); err != nil {
		c.log(slog.LevelWarn, "disable recognition on shutdown failed", "error", err.Error())
	}
	if c.deps.Meter != nil {
		c.deps.Meter.Disable()
	}
}

// Utterance implements recognition.Listener.
func (c *Coordinator) Utterance(u recognition.Utterance) {
	if !c.deps.Recognizer.Live(u.Generation) {
		c.log(slog.LevelDebug, "stale utterance dropped", "generation", u.Generation)
		return
	}
	c.dispatch(u.Raw)
}

// Say routes text as if it had been recognized, regardless of the preference.
func (c *Coordinator) Say(text string) string {
	return c.dispatch(text)
}

// dispatch routes through the command router, falling back to classification.
func (c *Coordinator) dispatch(raw string) string {
	outcome := c.deps.Router.Route(raw)
	var label string
	if outcome.Matched {
		label = outcome.Descriptor.ID
		c.log(slog.LevelInfo, "command matched",
			"command", outcome.Descriptor.ID,
			"keyword", outcome.Keyword,
			"pass", string(outcome.Pass),
		)
	} else {
		result := c.deps.Classifier.Classify(raw)
		label = string(result.Event.Name)
		if err := c.deps.Publisher.Publish(result.Event.Name, result.Event.Detail); err != nil {
			label = OutcomeIgnored
			c.log(slog.LevelWarn, "fallback publish failed", "event", string(result.Event.Name), "error", err.Error())
		} else {
			c.log(slog.LevelDebug, "fallback event published", "event", string(result.Event.Name), "kind", string(result.Kind))
		}
	}

	c.mu.Lock()
	c.lastText = strings.TrimSpace(raw)
	c.lastOutcome = label
	c.mu.Unlock()
	return label
}

// Fatal implements recognition.Listener.
func (c *Coordinator) Fatal(err error) {
	message := "recognition failed"
	if err != nil {
		message = err.Error()
	}

	c.lifecycle.Lock()
	if c.deps.Recognizer.Status().Enabled {
		// re-enabled after the failure was raised
		c.lifecycle.Unlock()
		c.log(slog.LevelWarn, "stale fatal ignored", "error", message)
		return
	}

	c.mu.Lock()
	c.enabled = false
	c.lastErr = message
	c.updatedAt = time.Now()
	c.mu.Unlock()

	if c.deps.Meter != nil {
		c.deps.Meter.Disable()
	}
	if c.deps.Preferences != nil {
		if perr := c.deps.Preferences.SetEnabled(false); perr != nil {
			c.log(slog.LevelError, "persist preference failed", "error", perr.Error())
		}
	}
	c.lifecycle.Unlock()

	c.log(slog.LevelError, "voice control disabled by fatal error", "error", message)
	c.deps.Indicator.ShowError(context.Background(), message)
	c.notify()
}

// Level returns the latest meter sample, or zero when no meter is wired.
func (c *Coordinator) Level() int {
	if c.deps.Meter == nil {
		return 0
	}
	return c.deps.Meter.Level()
}

// Status returns a snapshot combining the preference and the recognizer state.
func (c *Coordinator) Status() Status {
	rs := c.deps.Recognizer.Status()
	level := c.Level()

	c.mu.Lock()
	defer c.mu.Unlock()
	status := Status{
		Enabled:       c.enabled,
		State:         string(rs.State),
		Generation:    rs.Generation,
		Level:         level,
		LastUtterance: c.lastText,
		LastOutcome:   c.lastOutcome,
		LastError:     c.lastErr,
		Restarts:      rs.Restarts,
		UpdatedAt:     c.updatedAt,
	}
	if status.LastUtterance == "" {
		status.LastUtterance = rs.LastUtterance
	}
	return status
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	observers := append([]func(Status){}, c.observers...)
	c.mu.Unlock()
	if len(observers) == 0 {
		return
	}

	status := c.Status()
	for _, fn := range observers {
		fn(status)
	}
}

func (c *Coordinator) log(level slog.Level, msg string, attrs ...any) {
	if c.deps.Logger == nil {
		return
	}
	c.deps.Logger.Log(context.Background(), level, msg, attrs...)
}
