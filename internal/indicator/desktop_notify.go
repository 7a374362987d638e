package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = "/org/freedesktop/Notifications"
	notificationsIface = "org.freedesktop.Notifications"
)

// Urgency levels defined by the freedesktop notifications protocol.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// notification is one voice-state bubble. Category lets notification daemons
// theme or route voice states separately.
type notification struct {
	AppName   string
	ReplaceID uint32
	Icon      string
	Summary   string
	Body      string
	Category  string
	Urgency   byte
	Resident  bool
	Actions   []notificationAction
	TimeoutMS int
}

type notificationAction struct {
	Key   string
	Label string
}

// voiceState describes how each voice state is presented.
type voiceState struct {
	icon     string
	category string
	urgency  byte
	resident bool
	actions  []notificationAction
}

var (
	stateListening = voiceState{
		icon:     "audio-input-microphone",
		category: "x-vocalnav.listening",
		urgency:  urgencyLow,
		resident: true,
		actions:  []notificationAction{{Key: "disable", Label: "Desactivar voz"}},
	}
	stateDisabled = voiceState{
		icon:     "microphone-sensitivity-muted",
		category: "x-vocalnav.disabled",
		urgency:  urgencyLow,
		actions:  []notificationAction{{Key: "enable", Label: "Activar voz"}},
	}
	stateError = voiceState{
		icon:     "dialog-error",
		category: "x-vocalnav.error",
		urgency:  urgencyCritical,
		actions:  []notificationAction{{Key: "enable", Label: "Reintentar"}},
	}
)

// notifyArgs renders the busctl argument list for Notify (signature susssasa{sv}i).
func notifyArgs(n notification) []string {
	args := []string{
		"--user", "call", notificationsDest, notificationsPath, notificationsIface,
		"Notify", "susssasa{sv}i",
		n.AppName,
		strconv.FormatUint(uint64(n.ReplaceID), 10),
		n.Icon,
		n.Summary,
		n.Body,
	}

	args = append(args, strconv.Itoa(len(n.Actions)*2))
	for _, action := range n.Actions {
		args = append(args, action.Key, action.Label)
	}

	hints := [][]string{{"urgency", "y", strconv.Itoa(int(n.Urgency))}}
	if n.Category != "" {
		hints = append(hints, []string{"category", "s", n.Category})
	}
	if n.Resident {
		hints = append(hints, []string{"resident", "b", "true"})
	}
	args = append(args, strconv.Itoa(len(hints)))
	for _, hint := range hints {
		args = append(args, hint...)
	}

	return append(args, strconv.Itoa(n.TimeoutMS))
}

// parseNotifyID extracts the server id from busctl output such as "u 42".
func parseNotifyID(out string) (uint32, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("notification server returned %q", strings.TrimSpace(out))
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse notification id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}

// desktopNotify posts n over the session bus and returns the id the server assigned.
func desktopNotify(ctx context.Context, n notification) (uint32, error) {
	out, err := busctl(ctx, "notify", notifyArgs(n))
	if err != nil {
		return 0, err
	}
	return parseNotifyID(out)
}

func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := busctl(ctx, "dismiss", []string{
		"--user", "call", notificationsDest, notificationsPath, notificationsIface,
		"CloseNotification", "u", strconv.FormatUint(uint64(id), 10),
	})
	return err
}

func busctl(ctx context.Context, op string, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		if detail := strings.TrimSpace(string(out)); detail != "" {
			return "", fmt.Errorf("desktop %s: %w (%s)", op, err, detail)
		}
		return "", fmt.Errorf("desktop %s: %w", op, err)
	}
	return string(out), nil
}
