package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/vocalnav/internal/audio"
	"github.com/rbright/vocalnav/internal/bridge"
	"github.com/rbright/vocalnav/internal/bus"
	"github.com/rbright/vocalnav/internal/catalog"
	"github.com/rbright/vocalnav/internal/classify"
	"github.com/rbright/vocalnav/internal/command"
	"github.com/rbright/vocalnav/internal/config"
	"github.com/rbright/vocalnav/internal/indicator"
	"github.com/rbright/vocalnav/internal/ipc"
	"github.com/rbright/vocalnav/internal/meter"
	"github.com/rbright/vocalnav/internal/prefs"
	"github.com/rbright/vocalnav/internal/recognition"
	"github.com/rbright/vocalnav/internal/speech"
	"github.com/rbright/vocalnav/internal/voice"
)

const grpcDumpFile = "speech-responses.jsonl"

// Engine is a recognizer the daemon owns and closes on exit.
type Engine interface {
	recognition.Engine
	Close() error
}

// EngineFactory builds the recognizer for one daemon run.
type EngineFactory func(ctx context.Context, logger *slog.Logger, cfg speech.Config, capture speech.CaptureFunc) (Engine, error)

func defaultEngineFactory(ctx context.Context, logger *slog.Logger, cfg speech.Config, capture speech.CaptureFunc) (Engine, error) {
	engine, err := speech.New(ctx, logger, cfg, capture)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// commandRun owns the control socket and runs the voice daemon until ctx ends.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	owner, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{PingTimeout: 180 * time.Millisecond, Retries: 8, Logger: logger})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			return 3
		}
		return 1
	}
	defer owner.Close()

	d, err := r.buildDaemon(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon setup failed", "error", err.Error())
		return 1
	}
	defer d.close()

	if err := d.restore(ctx, cfg.Recognition.DefaultEnabled); err != nil {
		logger.Warn("restore voice preference failed", "error", err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(gctx, owner, d.coordinator)
	})
	if d.bridge != nil {
		g.Go(func() error {
			return d.bridge.ListenAndServe(gctx)
		})
	}

	logger.Info("daemon running", "socket", socketPath, "bridge", cfg.Bridge.Enable)
	err = g.Wait()
	d.coordinator.Shutdown()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon stopped with error", "error", err.Error())
		return 1
	}

	logger.Info("daemon stopped")
	return 0
}

// daemon is the wired runtime graph for one run.
type daemon struct {
	logger      *slog.Logger
	store       *prefs.Store
	engine      Engine
	coordinator *voice.Coordinator
	router      *command.Router
	bus         *bus.Bus
	bridge      *bridge.Server
	closers     []io.Closer
}

func (r Runner) buildDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) (*daemon, error) {
	stateDir, err := config.ResolveStateDir(cfg)
	if err != nil {
		return nil, err
	}

	d := &daemon{logger: logger}
	d.store, err = prefs.Open(filepath.Join(stateDir, "prefs"), logger)
	if err != nil {
		return nil, err
	}

	d.bus = bus.New(logger)
	d.router = command.NewRouter(logger)
	d.router.Register(catalog.Mount, catalog.Descriptors(d.bus, logger, cfg.Commands))

	speechCfg, err := speechConfig(cfg, d.router.Keywords())
	if err != nil {
		d.close()
		return nil, err
	}
	if cfg.Debug.EnableGRPCDump {
		dump, err := openDump(filepath.Join(stateDir, grpcDumpFile))
		if err != nil {
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, dump)
		speechCfg.DebugResponseSinkJSON = dump
	}

	opener := &audio.Opener{Logger: logger, Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback}
	capture := func(ctx context.Context) (speech.AudioSource, error) {
		c, err := opener.Capture(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	newEngine := r.NewEngine
	if newEngine == nil {
		newEngine = defaultEngineFactory
	}
	d.engine, err = newEngine(ctx, logger, speechCfg, capture)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("create recognizer: %w", err)
	}

	manager := recognition.NewManager(logger, d.engine, recognition.Options{
		RestartDelay:    time.Duration(cfg.Recognition.RestartDelayMS) * time.Millisecond,
		MaxRestartDelay: time.Duration(cfg.Recognition.MaxRestartDelayMS) * time.Millisecond,
		QuickFailWindow: time.Duration(cfg.Recognition.QuickFailWindowMS) * time.Millisecond,
	})

	var monitor *meter.Monitor
	deps := voice.Deps{
		Logger:      logger,
		Recognizer:  manager,
		Router:      d.router,
		Classifier:  classify.New(classifyVocabulary(cfg.Vocabulary)),
		Publisher:   d.bus,
		Preferences: d.store,
		Indicator:   indicator.Nop{},
	}
	if cfg.Meter.Enable {
		source := meter.SourceFunc(func(ctx context.Context) (meter.Stream, error) {
			c, err := opener.Meter(ctx, cfg.Meter.Window)
			if err != nil {
				return nil, err
			}
			return c, nil
		})
		monitor = meter.NewMonitor(logger, source, time.Duration(cfg.Meter.IntervalMS)*time.Millisecond, cfg.Meter.Window)
		deps.Meter = monitor
	}
	if cfg.Indicator.Enable || cfg.Indicator.SoundEnable {
		deps.Indicator = indicator.NewDesktop(cfg.Indicator, logger)
	}

	d.coordinator, err = voice.New(deps)
	if err != nil {
		d.close()
		return nil, err
	}

	if cfg.Bridge.Enable {
		d.bridge, err = bridge.New(cfg.Bridge, bridge.Deps{
			Logger:     logger,
			Router:     d.router,
			Events:     d.bus,
			Preference: d.coordinator,
			Status: func() bridge.StatusSnapshot {
				return bridgeStatus(d.coordinator.Status())
			},
		})
		if err != nil {
			d.close()
			return nil, err
		}
		d.coordinator.OnStatus(func(s voice.Status) { d.bridge.BroadcastStatus(bridgeStatus(s)) })
		if monitor != nil {
			monitor.OnLevel(d.bridge.BroadcastLevel)
		}
	}

	return d, nil
}

// restore applies the stored preference, or fallback when none was stored.
func (d *daemon) restore(ctx context.Context, fallback bool) error {
	enabled, found, err := d.store.Enabled()
	if err != nil {
		return err
	}
	if !found {
		enabled = fallback
	}
	d.logger.Info("restoring voice preference", "enabled", enabled, "stored", found)
	return d.coordinator.Restore(ctx, enabled)
}

func (d *daemon) close() {
	if d.bridge != nil {
		d.bridge.Close()
	}
	if d.engine != nil {
		if err := d.engine.Close(); err != nil {
			d.logger.Warn("close recognizer failed", "error", err.Error())
		}
	}
	for _, c := range d.closers {
		_ = c.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("close preference store failed", "error", err.Error())
		}
	}
}

func speechConfig(cfg config.Config, commandKeywords []string) (speech.Config, error) {
	vocab, _, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		return speech.Config{}, err
	}

	phrases := make([]speech.Phrase, 0, len(commandKeywords)+len(vocab))
	for _, keyword := range commandKeywords {
		phrases = append(phrases, speech.Phrase{Text: keyword, Boost: float32(cfg.Speech.CommandBoost)})
	}
	for _, p := range vocab {
		phrases = append(phrases, speech.Phrase{Text: p.Phrase, Boost: p.Boost})
	}

	return speech.Config{
		Endpoint:             cfg.Speech.Endpoint,
		CredentialsFile:      cfg.Speech.CredentialsFile,
		Insecure:             cfg.Speech.Insecure,
		LanguageCode:         cfg.Speech.LanguageCode,
		Model:                cfg.Speech.Model,
		AutomaticPunctuation: cfg.Speech.AutomaticPunctuation,
		Phrases:              phrases,
		StreamLimit:          time.Duration(cfg.Speech.StreamLimitMS) * time.Millisecond,
		OpenTimeout:          time.Duration(cfg.Speech.OpenTimeoutMS) * time.Millisecond,
	}, nil
}

// classifyVocabulary overlays configured words on the Spanish defaults.
// Special tokens replace the default table wholesale; reserved words replace per control.
func classifyVocabulary(cfg config.VocabularyConfig) classify.Vocabulary {
	vocab := classify.SpanishVocabulary()
	if len(cfg.SpecialTokens) > 0 {
		vocab.SpecialTokens = make(map[string]string, len(cfg.SpecialTokens))
		for word, text := range cfg.SpecialTokens {
			vocab.SpecialTokens[word] = text
		}
	}
	for control, words := range cfg.Reserved {
		if len(words) == 0 {
			continue
		}
		vocab.Reserved[classify.Control(control)] = append([]string(nil), words...)
	}
	return vocab
}

func bridgeStatus(s voice.Status) bridge.StatusSnapshot {
	return bridge.StatusSnapshot{Enabled: s.Enabled, State: s.State, Error: s.LastError}
}

func openDump(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create dump dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open speech dump: %w", err)
	}
	return f, nil
}
