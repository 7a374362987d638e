package audio

import (
	"context"
	"log/slog"
	"sync"
)

// Opener selects devices and opens captures for the recognizer and the meter.
// The meter follows whichever source the recognizer last opened.
type Opener struct {
	Logger   *slog.Logger
	Input    string
	Fallback string

	mu        sync.Mutex
	listening string
}

// Capture opens a chunked stream for the recognizer.
func (o *Opener) Capture(ctx context.Context) (*Capture, error) {
	capture, device, err := o.open(ctx, Policy{Input: o.Input, Fallback: o.Fallback, Purpose: ForRecognition}, CaptureOptions{
		MediaName: applicationName + " recognition",
	})
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.listening = device.ID
	o.mu.Unlock()
	return capture, nil
}

// Meter opens a window-only stream for level metering.
func (o *Opener) Meter(ctx context.Context, window int) (*Capture, error) {
	policy := Policy{Input: o.Input, Fallback: o.Fallback, Purpose: ForMeter, Follow: o.RecognitionDevice()}
	capture, _, err := o.open(ctx, policy, CaptureOptions{
		MediaName: applicationName + " level",
		Window:    window,
		Discard:   true,
	})
	return capture, err
}

// RecognitionDevice returns the source id the recognizer last opened, if any.
func (o *Opener) RecognitionDevice() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listening
}

func (o *Opener) open(ctx context.Context, policy Policy, opts CaptureOptions) (*Capture, Device, error) {
	selection, err := SelectDevice(ctx, policy)
	if err != nil {
		return nil, Device{}, err
	}
	if selection.Warning != "" && o.Logger != nil {
		o.Logger.Warn(selection.Warning, "device", selection.Device.ID, "purpose", policy.Purpose.String())
	}
	capture, err := StartCapture(ctx, selection.Device, opts)
	if err != nil {
		return nil, Device{}, err
	}
	return capture, selection.Device, nil
}
