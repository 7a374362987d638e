package voice

import (
	"context"
	"fmt"

	"github.com/rbright/vocalnav/internal/ipc"
)

// Handle serves one control-socket request.
func (c *Coordinator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.statusResponse()
	case ipc.CommandEnable:
		return c.applyResponse(c.SetEnabled(ctx, true))
	case ipc.CommandDisable:
		return c.applyResponse(c.SetEnabled(ctx, false))
	case ipc.CommandToggle:
		_, err := c.Toggle(ctx)
		return c.applyResponse(err)
	case ipc.CommandLevel:
		level := c.Level()
		return ipc.Response{OK: true, Level: &level}
	case ipc.CommandSay:
		outcome := c.Say(req.Text)
		return ipc.Response{OK: true, Outcome: outcome, Message: fmt.Sprintf("%q -> %s", req.Text, outcome)}
	default:
		return ipc.Failure(fmt.Errorf("unknown command %q", req.Command))
	}
}

func (c *Coordinator) applyResponse(err error) ipc.Response {
	resp := c.statusResponse()
	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
	}
	return resp
}

func (c *Coordinator) statusResponse() ipc.Response {
	status := c.Status()
	enabled := status.Enabled
	level := status.Level
	resp := ipc.Response{
		OK:         true,
		State:      status.State,
		Enabled:    &enabled,
		Level:      &level,
		Generation: status.Generation,
	}
	if status.LastError != "" {
		resp.Message = "last error: " + status.LastError
	} else if status.LastUtterance != "" {
		resp.Message = fmt.Sprintf("last utterance %q -> %s", status.LastUtterance, status.LastOutcome)
	}
	return resp
}
