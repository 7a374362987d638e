// Package speech adapts Google Cloud Speech streaming recognition to the recognition engine contract.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rbright/vocalnav/internal/recognition"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	defaultLanguage    = "es-ES"
	defaultStreamLimit = 290 * time.Second
	defaultOpenTimeout = 5 * time.Second
	sampleRateHertz    = 16000
)

// Phrase is one vocabulary boost phrase in request-ready form.
type Phrase struct {
	Text  string
	Boost float32
}

// Config controls client construction and stream initialization.
type Config struct {
	Endpoint             string
	CredentialsFile      string
	Insecure             bool
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	Phrases              []Phrase
	StreamLimit          time.Duration
	OpenTimeout          time.Duration
	// DebugResponseSinkJSON receives every response as one JSON line.
	DebugResponseSinkJSON io.Writer
}

// AudioSource is one open microphone capture.
type AudioSource interface {
	Chunks() <-chan []byte
	Stop() error
}

// CaptureFunc opens the microphone for one recognition session.
type CaptureFunc func(ctx context.Context) (AudioSource, error)

type streamOpener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Engine runs at most one streaming recognition session at a time.
type Engine struct {
	logger  *slog.Logger
	cfg     Config
	capture CaptureFunc
	open    streamOpener
	close   func() error

	mu      sync.Mutex
	session *session
	debugMu sync.Mutex
}

// New dials the Speech API and returns an idle engine.
func New(ctx context.Context, logger *slog.Logger, cfg Config, capture CaptureFunc) (*Engine, error) {
	if capture == nil {
		return nil, errors.New("speech capture func is nil")
	}

	client, err := speechapi.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	e := newEngine(logger, cfg, capture, func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	})
	e.close = client.Close
	return e, nil
}

// ClientOptions maps endpoint and credential settings to client options.
func ClientOptions(cfg Config) []option.ClientOption {
	var opts []option.ClientOption
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if cfg.Insecure {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return opts
	}
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	return opts
}

func newEngine(logger *slog.Logger, cfg Config, capture CaptureFunc, open streamOpener) *Engine {
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = defaultLanguage
	}
	if cfg.StreamLimit <= 0 {
		cfg.StreamLimit = defaultStreamLimit
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	return &Engine{
		logger:  logger,
		cfg:     cfg,
		capture: capture,
		open:    open,
	}
}

// Start opens the microphone and a recognition stream, then reports Started.
func (e *Engine) Start(ctx context.Context, sink recognition.Sink) error {
	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		return recognition.ErrAlreadyRunning
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s, err := e.openSession(sessionCtx, cancel, sink)
	if err != nil {
		e.mu.Unlock()
		cancel()
		return err
	}
	e.session = s
	e.mu.Unlock()

	sink.Started()
	go s.sendLoop(sessionCtx, e.cfg.StreamLimit)
	go s.recvLoop()
	return nil
}

func (e *Engine) openSession(ctx context.Context, cancel context.CancelFunc, sink recognition.Sink) (*session, error) {
	source, err := e.capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	stream, err := openWithTimeout(ctx, e.cfg.OpenTimeout, e.open)
	if err != nil {
		_ = source.Stop()
		return nil, classifiedError("open streaming recognizer", err)
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(e.cfg),
		},
	}
	if err := runWithTimeout(ctx, e.cfg.OpenTimeout, func() error { return stream.Send(req) }); err != nil {
		_ = source.Stop()
		return nil, classifiedError("send streaming config", err)
	}

	return &session{
		engine:   e,
		sink:     sink,
		stream:   stream,
		source:   source,
		cancel:   cancel,
		sendDone: make(chan struct{}),
		recvDone: make(chan struct{}),
	}, nil
}

// Stop tears down the open session without reporting Ended.
func (e *Engine) Stop() error {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.mu.Unlock()

	if s == nil {
		return nil
	}
	s.abort()
	<-s.sendDone
	<-s.recvDone
	return nil
}

// Close stops any session and releases the API client.
func (e *Engine) Close() error {
	_ = e.Stop()
	if e.close == nil {
		return nil
	}
	return e.close()
}

func (e *Engine) release(s *session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == s {
		e.session = nil
	}
}

func (e *Engine) dump(resp *speechpb.StreamingRecognizeResponse) {
	sink := e.cfg.DebugResponseSinkJSON
	if sink == nil {
		return
	}
	b, err := protojson.Marshal(resp)
	if err != nil {
		return
	}
	e.debugMu.Lock()
	defer e.debugMu.Unlock()
	_, _ = sink.Write(append(b, '\n'))
}

func (e *Engine) log(level slog.Level, msg string, attrs ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Log(context.Background(), level, msg, attrs...)
}

func streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	config := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            sampleRateHertz,
		AudioChannelCount:          1,
		LanguageCode:               cfg.LanguageCode,
		EnableAutomaticPunctuation: cfg.AutomaticPunctuation,
		Model:                      strings.TrimSpace(cfg.Model),
		SpeechContexts:             speechContexts(cfg.Phrases),
	}
	return &speechpb.StreamingRecognitionConfig{
		Config:         config,
		InterimResults: false,
	}
}

// speechContexts groups phrases sharing a boost into one context, in first-seen order.
func speechContexts(phrases []Phrase) []*speechpb.SpeechContext {
	var (
		contexts []*speechpb.SpeechContext
		byBoost  = map[float32]*speechpb.SpeechContext{}
		seen     = map[string]struct{}{}
	)
	for _, phrase := range phrases {
		text := strings.TrimSpace(phrase.Text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		ctx, ok := byBoost[phrase.Boost]
		if !ok {
			ctx = &speechpb.SpeechContext{Boost: phrase.Boost}
			byBoost[phrase.Boost] = ctx
			contexts = append(contexts, ctx)
		}
		ctx.Phrases = append(ctx.Phrases, text)
	}
	return contexts
}
