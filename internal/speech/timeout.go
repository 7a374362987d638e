package speech

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

type openResult struct {
	stream speechpb.Speech_StreamingRecognizeClient
	err    error
}

// openWithTimeout bounds stream-open latency when the backend stalls.
func openWithTimeout(ctx context.Context, timeout time.Duration, open streamOpener) (speechpb.Speech_StreamingRecognizeClient, error) {
	if timeout <= 0 {
		return open(ctx)
	}

	resultCh := make(chan openResult, 1)
	go func() {
		stream, err := open(ctx)
		resultCh <- openResult{stream: stream, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	case result := <-resultCh:
		return result.stream, result.err
	}
}

// runWithTimeout bounds one blocking stream call such as the initial Send.
func runWithTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	if timeout <= 0 {
		return call()
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- call()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	case err := <-resultCh:
		return err
	}
}
