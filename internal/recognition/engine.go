package recognition

import (
	"context"
	"errors"
	"fmt"
)

// Class groups engine errors by how the manager reacts to them.
type Class string

const (
	ClassNoSpeech         Class = "no-speech"
	ClassAborted          Class = "aborted"
	ClassNetwork          Class = "network"
	ClassPermissionDenied Class = "permission-denied"
	ClassOther            Class = "other"
)

// ErrAlreadyRunning is returned by Engine.Start when a session is already open.
var ErrAlreadyRunning = errors.New("recognition already running")

// EngineError is an asynchronous or start-time engine failure.
type EngineError struct {
	Class Class
	Err   error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Fatal reports whether the error ends voice control.
func (e *EngineError) Fatal() bool {
	return e != nil && e.Class == ClassPermissionDenied
}

// Sink receives engine callbacks for one session.
type Sink interface {
	Started()
	Result(text string)
	Ended()
	Failed(err *EngineError)
}

// Engine is one continuous speech-to-text backend.
type Engine interface {
	// Start opens a session and returns once it is underway.
	Start(ctx context.Context, sink Sink) error
	// Stop tears down the open session, if any. It must be safe to call repeatedly.
	Stop() error
}

// boundSink pins engine callbacks to the generation they were started with.
type boundSink struct {
	manager    *Manager
	generation uint64
}

func (s boundSink) Started()                { s.manager.handleStarted(s.generation) }
func (s boundSink) Result(text string)      { s.manager.handleResult(s.generation, text) }
func (s boundSink) Ended()                  { s.manager.handleEnded(s.generation) }
func (s boundSink) Failed(err *EngineError) { s.manager.handleFailed(s.generation, err) }
