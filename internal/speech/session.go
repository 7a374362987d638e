package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rbright/vocalnav/internal/recognition"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// session is one StreamingRecognize RPC fed by one capture.
type session struct {
	engine *Engine
	sink   recognition.Sink
	stream speechpb.Speech_StreamingRecognizeClient
	source AudioSource
	cancel context.CancelFunc

	sendDone chan struct{}
	recvDone chan struct{}

	aborted   atomic.Bool
	closeOnce sync.Once
}

// sendLoop forwards audio until the capture ends, the stream limit elapses, or the session is aborted.
func (s *session) sendLoop(ctx context.Context, limit time.Duration) {
	defer close(s.sendDone)

	timer := time.NewTimer(limit)
	defer timer.Stop()

	chunks := s.source.Chunks()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.engine.log(slog.LevelDebug, "speech stream limit reached", "limit", limit.String())
			_ = s.source.Stop()
		case chunk, ok := <-chunks:
			if !ok {
				s.closeSend()
				return
			}
			if len(chunk) == 0 {
				continue
			}
			err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
			})
			if err != nil {
				// The receive side reports the terminal status.
				_ = s.source.Stop()
				return
			}
		}
	}
}

func (s *session) recvLoop() {
	defer close(s.recvDone)

	for {
		resp, err := s.stream.Recv()
		if err == nil {
			if rpcErr := status.ErrorProto(resp.GetError()); rpcErr != nil {
				s.finish(rpcErr)
				return
			}
			s.deliver(resp)
			continue
		}
		if errors.Is(err, io.EOF) {
			s.finish(nil)
			return
		}
		s.finish(err)
		return
	}
}

func (s *session) deliver(resp *speechpb.StreamingRecognizeResponse) {
	s.engine.dump(resp)
	if s.aborted.Load() {
		return
	}
	for _, result := range resp.GetResults() {
		if !result.GetIsFinal() {
			continue
		}
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if transcript := strings.TrimSpace(alternatives[0].GetTranscript()); transcript != "" {
			s.sink.Result(transcript)
		}
	}
}

// finish releases resources and reports the outcome unless Stop requested teardown.
func (s *session) finish(err error) {
	_ = s.source.Stop()
	s.cancel()
	s.engine.release(s)

	if s.aborted.Load() {
		return
	}
	if err == nil {
		s.sink.Ended()
		return
	}

	class := Classify(err)
	engineErr := &recognition.EngineError{Class: class, Err: err}
	s.engine.log(slog.LevelDebug, "speech stream failed", "class", string(class), "error", err.Error())
	s.sink.Failed(engineErr)
	if !engineErr.Fatal() {
		s.sink.Ended()
	}
}

func (s *session) abort() {
	s.aborted.Store(true)
	_ = s.source.Stop()
	s.cancel()
}

func (s *session) closeSend() {
	s.closeOnce.Do(func() { _ = s.stream.CloseSend() })
}

// Classify maps a stream error to a recognition error class.
func Classify(err error) recognition.Class {
	if err == nil {
		return recognition.ClassOther
	}
	if errors.Is(err, context.Canceled) {
		return recognition.ClassAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return recognition.ClassNetwork
	}

	st, ok := status.FromError(err)
	if !ok {
		return recognition.ClassOther
	}
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		return recognition.ClassPermissionDenied
	case codes.Unavailable, codes.ResourceExhausted:
		return recognition.ClassNetwork
	case codes.Canceled, codes.Aborted:
		return recognition.ClassAborted
	case codes.DeadlineExceeded, codes.OutOfRange:
		return recognition.ClassNoSpeech
	default:
		return recognition.ClassOther
	}
}

func classifiedError(op string, err error) error {
	var engineErr *recognition.EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	return &recognition.EngineError{Class: Classify(err), Err: fmt.Errorf("%s: %w", op, err)}
}
