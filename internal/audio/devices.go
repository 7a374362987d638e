// Package audio handles input device discovery, selection, and microphone capture.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const applicationName = "vocalnav"

// Device describes one Pulse input source. Monitor marks a loopback of a playback sink.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
	Monitor     bool
}

// Purpose names the consumer a capture is opened for.
type Purpose int

const (
	// ForRecognition feeds the speech recognizer; a muted source would only ever yield silence.
	ForRecognition Purpose = iota
	// ForMeter feeds the level meter; a muted source honestly reads zero.
	ForMeter
)

func (p Purpose) String() string {
	if p == ForMeter {
		return "meter"
	}
	return "recognition"
}

// Policy is the configured device choice for one capture.
// Follow is the recognizer's current source; the meter reuses it while it is still
// plugged in so the level shown is the level the recognizer hears.
type Policy struct {
	Input    string
	Fallback string
	Purpose  Purpose
	Follow   string
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns available Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := connect()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultSource.ID(),
			Monitor:     strings.HasSuffix(info.SourceName, ".monitor"),
		})
	}
	return devices, nil
}

// SelectDevice resolves policy against the live device list.
func SelectDevice(ctx context.Context, policy Policy) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, policy)
}

// selectDeviceFromList applies policy to a pre-fetched device list.
func selectDeviceFromList(devices []Device, policy Policy) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	if policy.Purpose == ForMeter && policy.Follow != "" {
		for _, dev := range devices {
			if dev.ID == policy.Follow && dev.Available {
				return Selection{Device: dev}, nil
			}
		}
	}

	primary, err := resolveDevice(devices, policy.Input, "audio.input")
	if err != nil {
		return Selection{}, err
	}
	reason := policy.Purpose.reject(primary, named(policy.Input))
	if reason == "" {
		return Selection{Device: primary}, nil
	}

	fallback, err := resolveDevice(devices, policy.Fallback, "audio.fallback")
	if err != nil {
		return Selection{}, fmt.Errorf("primary input %q is %s and %w", primary.ID, reason, err)
	}
	if why := policy.Purpose.reject(fallback, named(policy.Fallback)); why != "" {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", fallback.ID, why)
	}

	return Selection{
		Device:   fallback,
		Warning:  fmt.Sprintf("audio.input %q is %s for %s; falling back to %q", primary.ID, reason, policy.Purpose, fallback.ID),
		Fallback: primary.ID != fallback.ID,
	}, nil
}

// reject explains why dev cannot serve p, or returns "" when it can.
// Playback monitors are only used when named explicitly.
func (p Purpose) reject(dev Device, explicit bool) string {
	switch {
	case !dev.Available:
		return "unavailable"
	case dev.Monitor && !explicit:
		return "a playback monitor"
	case dev.Muted && p == ForRecognition:
		return "muted"
	default:
		return ""
	}
}

// resolveDevice maps a config term ("" or "default" means the server default) to a device.
func resolveDevice(devices []Device, term string, key string) (Device, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if !named(term) {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}
	for _, dev := range devices {
		if deviceMatches(dev, term) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("%s %q did not match any device", key, term)
}

func named(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	return term != "" && term != "default"
}

// deviceMatches reports whether a lower-cased search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func connect() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(applicationName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
