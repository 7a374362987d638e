package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rbright/vocalnav/internal/bus"
)

// Inbound message types sent by UI islands.
const (
	typeRegister   = "register"
	typeUnregister = "unregister"
	typePreference = "preference"
)

// Outbound message types sent to UI islands.
const (
	typeHello  = "hello"
	typeEvent  = "event"
	typeLevel  = "level"
	typeStatus = "status"
	typeError  = "error"
	typeAck    = "ack"
)

// inbound is the union of client messages; Type selects which fields apply.
type inbound struct {
	Type     string          `json:"type"`
	Mount    string          `json:"mount,omitempty"`
	Commands []remoteCommand `json:"commands,omitempty"`
	Enabled  *bool           `json:"enabled,omitempty"`
}

// remoteCommand is a keyword command whose handler publishes Event with Detail.
type remoteCommand struct {
	ID          string          `json:"id"`
	Keywords    []string        `json:"keywords"`
	Description string          `json:"description,omitempty"`
	Event       string          `json:"event"`
	Detail      json.RawMessage `json:"detail,omitempty"`
}

// outbound is the union of server messages.
type outbound struct {
	Type   string       `json:"type"`
	Client string       `json:"client,omitempty"`
	Name   string       `json:"name,omitempty"`
	Detail any          `json:"detail,omitempty"`
	Level  *int         `json:"level,omitempty"`
	Status *statusFrame `json:"status,omitempty"`
	Mount  string       `json:"mount,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type statusFrame struct {
	Enabled bool   `json:"enabled"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

func decodeInbound(data []byte) (inbound, error) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return inbound{}, fmt.Errorf("decode message: %w", err)
	}
	msg.Type = strings.TrimSpace(msg.Type)
	msg.Mount = strings.TrimSpace(msg.Mount)

	switch msg.Type {
	case typeRegister:
		if msg.Mount == "" {
			return inbound{}, fmt.Errorf("register requires mount")
		}
		for i, cmd := range msg.Commands {
			if err := cmd.validate(); err != nil {
				return inbound{}, fmt.Errorf("command %d: %w", i, err)
			}
		}
	case typeUnregister:
		if msg.Mount == "" {
			return inbound{}, fmt.Errorf("unregister requires mount")
		}
	case typePreference:
		if msg.Enabled == nil {
			return inbound{}, fmt.Errorf("preference requires enabled")
		}
	default:
		return inbound{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return msg, nil
}

func (c remoteCommand) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if !bus.Known(bus.Name(c.Event)) {
		return fmt.Errorf("%s: %w: %q", c.ID, bus.ErrUnknownEvent, c.Event)
	}
	for _, keyword := range c.Keywords {
		if strings.TrimSpace(keyword) != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: at least one keyword is required", c.ID)
}
