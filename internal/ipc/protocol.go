// Package ipc implements the single-owner unix-socket JSON line protocol.
package ipc

import (
	"fmt"
	"strings"
)

// Command names accepted by the owner daemon.
const (
	CommandStatus  = "status"
	CommandEnable  = "enable"
	CommandDisable = "disable"
	CommandToggle  = "toggle"
	CommandLevel   = "level"
	CommandSay     = "say"
)

// Request is one client line. Text carries the utterance for "say".
type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

// Validate rejects unknown commands and a "say" without text.
func (r Request) Validate() error {
	switch r.Command {
	case CommandStatus, CommandEnable, CommandDisable, CommandToggle, CommandLevel:
		return nil
	case CommandSay:
		if strings.TrimSpace(r.Text) == "" {
			return fmt.Errorf("say requires text")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", r.Command)
	}
}

// Response is the owner's single reply line.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
	Level      *int   `json:"level,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
	// Outcome is the routing result of a "say" request: a command id, an event name, or "ignored".
	Outcome string `json:"outcome,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failure builds a non-OK response from err.
func Failure(err error) Response {
	return Response{OK: false, Error: err.Error()}
}
