// Package catalog builds the built-in voice commands for the student-records screens.
package catalog

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/rbright/vocalnav/internal/bus"
	"github.com/rbright/vocalnav/internal/command"
)

// Publisher is the bus subset command handlers need.
type Publisher interface {
	Publish(bus.Name, any) error
}

// Mount is the router mount key for built-in commands.
const Mount = "builtin"

var identifierPattern = regexp.MustCompile(`\d[\d-]*`)

type entry struct {
	id          string
	keywords    []string
	description string
	build       func(p Publisher, logger *slog.Logger, keywords []string) command.Handler
}

var entries = []entry{
	{
		id:          "navigate-home",
		keywords:    []string{"ir a inicio", "inicio"},
		description: "Navigate to the start section",
		build:       static(bus.EventNavigateToSection, nil),
	},
	{
		id:          "open-help",
		keywords:    []string{"abrir ayuda", "mostrar ayuda", "ayuda"},
		description: "Open the help dialog",
		build:       static(bus.EventOpenHelp, nil),
	},
	{
		id:          "close-help",
		keywords:    []string{"cerrar ayuda", "cerrar modal ayudas", "cerrar modal de ayuda"},
		description: "Close the help dialog",
		build:       static(bus.EventCloseDialog, nil),
	},
	{
		id:          "open-theme-picker",
		keywords:    []string{"abrir temas", "cambiar tema"},
		description: "Open the theme picker",
		build:       static(bus.EventOpenThemePicker, nil),
	},
	{
		id:          "close-theme-picker",
		keywords:    []string{"cerrar temas"},
		description: "Close the theme picker",
		build:       static(bus.EventCloseThemePicker, nil),
	},
	{
		id:          "theme-dark",
		keywords:    []string{"tema oscuro", "modo oscuro"},
		description: "Switch to the dark theme",
		build:       static(bus.EventSetTheme, bus.ThemeDetail{Theme: "dark"}),
	},
	{
		id:          "theme-light",
		keywords:    []string{"tema claro", "modo claro"},
		description: "Switch to the light theme",
		build:       static(bus.EventSetTheme, bus.ThemeDetail{Theme: "light"}),
	},
	{
		id:          "export-spreadsheet",
		keywords:    []string{"exportar excel", "exportar a excel", "descargar excel"},
		description: "Export the current table to a spreadsheet",
		build:       static(bus.EventExportSpreadsheet, nil),
	},
	{
		id:          "export-document",
		keywords:    []string{"exportar pdf", "exportar a pdf", "descargar pdf"},
		description: "Export the current table to a document",
		build:       static(bus.EventExportDocument, nil),
	},
	{
		id:          "create-record",
		keywords:    []string{"nuevo estudiante", "crear registro", "crear"},
		description: "Create a record, optionally with a spoken identifier",
		build:       record(bus.EventCreateRecord, false),
	},
	{
		id:          "edit-record",
		keywords:    []string{"editar"},
		description: "Edit the record with the spoken identifier",
		build:       record(bus.EventEditRecord, true),
	},
	{
		id:          "delete-record",
		keywords:    []string{"eliminar"},
		description: "Delete the record with the spoken identifier",
		build:       record(bus.EventDeleteRecord, true),
	},
	{
		id:          "activate-field",
		keywords:    []string{"campo"},
		description: "Focus the named form field",
		build:       field,
	},
	{
		id:          "reveal-secret",
		keywords:    []string{"mostrar contraseña"},
		description: "Reveal the password field",
		build:       static(bus.EventRevealSecretField, bus.SecretDetail{Show: true}),
	},
	{
		id:          "hide-secret",
		keywords:    []string{"ocultar contraseña"},
		description: "Hide the password field",
		build:       static(bus.EventHideSecretField, bus.SecretDetail{Show: false}),
	},
}

// IDs returns the built-in command identifiers in declaration order.
func IDs() []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids
}

// Descriptors builds the built-in commands; overrides replace keyword sets by command id.
func Descriptors(p Publisher, logger *slog.Logger, overrides map[string][]string) []command.Descriptor {
	out := make([]command.Descriptor, 0, len(entries))
	for _, e := range entries {
		keywords := e.keywords
		if custom, ok := overrides[e.id]; ok && len(custom) > 0 {
			keywords = custom
		}
		out = append(out, command.Descriptor{
			ID:          e.id,
			Keywords:    append([]string(nil), keywords...),
			Description: e.description,
			Handler:     e.build(p, logger, keywords),
		})
	}
	return out
}

func static(name bus.Name, detail any) func(Publisher, *slog.Logger, []string) command.Handler {
	return func(p Publisher, logger *slog.Logger, _ []string) command.Handler {
		return func(string) {
			publish(p, logger, name, detail)
		}
	}
}

func record(name bus.Name, requireID bool) func(Publisher, *slog.Logger, []string) command.Handler {
	return func(p Publisher, logger *slog.Logger, _ []string) command.Handler {
		return func(utterance string) {
			id := identifierPattern.FindString(utterance)
			if id == "" && requireID {
				if logger != nil {
					logger.Warn("record command without identifier", "event", string(name), "utterance", utterance)
				}
				return
			}
			publish(p, logger, name, bus.RecordDetail{Identifier: id})
		}
	}
}

func field(p Publisher, logger *slog.Logger, keywords []string) command.Handler {
	return func(utterance string) {
		name := remainderAfter(utterance, keywords)
		if name == "" {
			if logger != nil {
				logger.Warn("field command without field name", "utterance", utterance)
			}
			return
		}
		publish(p, logger, bus.EventActivateField, bus.FieldDetail{Field: name})
	}
}

// remainderAfter returns the text following the last occurrence of the longest matching keyword.
func remainderAfter(utterance string, keywords []string) string {
	best := ""
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" || !strings.Contains(utterance, keyword) {
			continue
		}
		if len(keyword) > len(best) {
			best = keyword
		}
	}
	if best == "" {
		return ""
	}
	idx := strings.LastIndex(utterance, best)
	return strings.Join(strings.Fields(utterance[idx+len(best):]), " ")
}

func publish(p Publisher, logger *slog.Logger, name bus.Name, detail any) {
	if err := p.Publish(name, detail); err != nil && logger != nil {
		logger.Error("publish command event failed", "event", string(name), "error", err.Error())
	}
}
