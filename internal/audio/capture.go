package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate expected by the recognizer.
	SampleRate = 16000

	chunkSizeBytes = 640 // 20ms @ 16kHz mono s16
)

// CaptureOptions tunes one record stream.
type CaptureOptions struct {
	// MediaName labels the stream in the Pulse mixer.
	MediaName string
	// Window is how many recent samples Window keeps; zero disables the tap.
	Window int
	// Discard skips chunk delivery for consumers that only read Window.
	Discard bool
}

// Capture streams fixed-size PCM chunks from one selected Pulse source.
type Capture struct {
	device  Device
	discard bool

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	ring    []float64
	ringPos int
	ringLen int
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// StartCapture creates and starts a 16kHz mono s16 record stream.
func StartCapture(ctx context.Context, selected Device, opts CaptureOptions) (*Capture, error) {
	client, err := connect()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := newCapture(selected, opts)
	capture.client = client

	mediaName := opts.MediaName
	if mediaName == "" {
		mediaName = applicationName + " capture"
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName(mediaName),
	)
	if err != nil {
		_ = capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
		case <-capture.stopCh:
		}
	}()

	return capture, nil
}

func newCapture(device Device, opts CaptureOptions) *Capture {
	c := &Capture{
		device:  device,
		discard: opts.Discard,
		chunks:  make(chan []byte, 128),
		stopCh:  make(chan struct{}),
	}
	if opts.Window > 0 {
		c.ring = make([]float64, opts.Window)
	}
	return c
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks returns the PCM stream as fixed-size byte slices.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Window appends the most recent samples, oldest first, scaled to [-1,1].
func (c *Capture) Window(dst []float64) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ringLen < len(c.ring) {
		return append(dst, c.ring[:c.ringLen]...)
	}
	dst = append(dst, c.ring[c.ringPos:]...)
	return append(dst, c.ring[:c.ringPos]...)
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := append([]byte(nil), c.pending...)
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 && !c.discard {
		select {
		case c.chunks <- pending:
		default:
		}
	}

	close(c.chunks)
	return nil
}

// Close is an alias for Stop.
func (c *Capture) Close() error {
	return c.Stop()
}

// onPCM receives raw Pulse frames and emits chunkSizeBytes slices to c.chunks.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as c.stopped so Stop's Wait cannot race it.
	c.inflight.Add(1)

	c.tapLocked(buffer)

	var chunks [][]byte
	if !c.discard {
		c.pending = append(c.pending, buffer...)
		for len(c.pending) >= chunkSizeBytes {
			chunk := make([]byte, chunkSizeBytes)
			copy(chunk, c.pending[:chunkSizeBytes])
			c.pending = c.pending[chunkSizeBytes:]
			chunks = append(chunks, chunk)
		}
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// tapLocked copies little-endian s16 samples into the ring.
func (c *Capture) tapLocked(buffer []byte) {
	if len(c.ring) == 0 {
		return
	}
	for i := 0; i+1 < len(buffer); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buffer[i:]))
		c.ring[c.ringPos] = float64(sample) / 32768
		c.ringPos = (c.ringPos + 1) % len(c.ring)
		if c.ringLen < len(c.ring) {
			c.ringLen++
		}
	}
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
