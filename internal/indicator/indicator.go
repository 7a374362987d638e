// Package indicator handles desktop notifications and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/vocalnav/internal/config"
)

// Controller is the voice-facing indicator contract.
type Controller interface {
	ShowListening(context.Context)
	ShowDisabled(context.Context)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// notifyFunc sends a replaceable notification and returns its server id.
type notifyFunc func(ctx context.Context, n notification) (uint32, error)

// dismissFunc closes a notification by id.
type dismissFunc func(ctx context.Context, id uint32) error

// Desktop routes indicator output through freedesktop notifications and PulseAudio cues.
type Desktop struct {
	cfg    config.IndicatorConfig
	logger *slog.Logger

	notify  notifyFunc
	dismiss dismissFunc
	cue     func(cueKind) error

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// NewDesktop creates an indicator controller from config.
func NewDesktop(cfg config.IndicatorConfig, logger *slog.Logger) *Desktop {
	return &Desktop{
		cfg:     cfg,
		logger:  logger,
		notify:  desktopNotify,
		dismiss: desktopDismiss,
		cue:     emitCue,
	}
}

// ShowListening signals that voice navigation is on.
func (d *Desktop) ShowListening(ctx context.Context) {
	d.playCue(cueEnable)
	d.show(ctx, stateListening, textOr(d.cfg.TextListening, "Listening"), "", 2000)
}

// ShowDisabled signals that voice navigation is off.
func (d *Desktop) ShowDisabled(ctx context.Context) {
	d.playCue(cueDisable)
	d.show(ctx, stateDisabled, textOr(d.cfg.TextDisabled, "Voice navigation off"), "", 2000)
}

// ShowError displays an error-state message.
func (d *Desktop) ShowError(ctx context.Context, text string) {
	d.playCue(cueError)
	timeout := d.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	d.show(ctx, stateError, textOr(d.cfg.TextError, "Speech recognition error"), strings.TrimSpace(text), timeout)
}

// Hide dismisses the active notification.
func (d *Desktop) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()
	if id == 0 {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.dismiss(ctx, id)
	})
}

// show sends one replaceable notification and remembers its id.
// Every voice state reuses the same bubble so toggling never stacks notifications.
func (d *Desktop) show(ctx context.Context, state voiceState, summary, body string, timeoutMS int) {
	if !d.cfg.Enable {
		return
	}
	appName := strings.TrimSpace(d.cfg.DesktopAppName)
	if appName == "" {
		appName = "vocalnav"
	}
	d.run(ctx, func(ctx context.Context) error {
		d.mu.Lock()
		replaceID := d.notificationID
		d.mu.Unlock()

		id, err := d.notify(ctx, notification{
			AppName:   appName,
			ReplaceID: replaceID,
			Icon:      state.icon,
			Summary:   summary,
			Body:      body,
			Category:  state.category,
			Urgency:   state.urgency,
			Resident:  state.resident,
			Actions:   state.actions,
			TimeoutMS: timeoutMS,
		})
		if err != nil {
			return err
		}

		d.mu.Lock()
		d.notificationID = id
		d.mu.Unlock()
		return nil
	})
}

// run executes an indicator operation with a bounded timeout.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (d *Desktop) playCue(kind cueKind) {
	if !d.cfg.SoundEnable {
		return
	}
	go func() {
		d.soundMu.Lock()
		defer d.soundMu.Unlock()
		if err := d.cue(kind); err != nil {
			d.log("indicator audio cue failed", err)
		}
	}()
}

func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}

func textOr(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// Nop discards all indicator output.
type Nop struct{}

func (Nop) ShowListening(context.Context)     {}
func (Nop) ShowDisabled(context.Context)      {}
func (Nop) ShowError(context.Context, string) {}
func (Nop) Hide(context.Context)              {}
