// Package cli parses vocalnav command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandEnable  Command = "enable"
	CommandDisable Command = "disable"
	CommandToggle  Command = "toggle"
	CommandStatus  Command = "status"
	CommandLevel   Command = "level"
	CommandSay     Command = "say"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandEnable:  {},
	CommandDisable: {},
	CommandToggle:  {},
	CommandStatus:  {},
	CommandLevel:   {},
	CommandSay:     {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Text is the utterance given to "say", words joined by single spaces.
	Text string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			if cmd == CommandSay {
				text := strings.Join(strings.Fields(strings.Join(args[i+1:], " ")), " ")
				if text == "" {
					return Parsed{}, errors.New("say requires text")
				}
				parsed.Text = text
				return parsed, nil
			}

			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run       Start the voice navigation daemon in the foreground
  enable    Turn voice navigation on
  disable   Turn voice navigation off
  toggle    Flip voice navigation on or off
  status    Print current state
  level     Print the current microphone level (0-100)
  say TEXT  Route TEXT as if it had been spoken
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/vocalnav/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
