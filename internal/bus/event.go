package bus

// Name identifies one dispatch event in the closed event set.
type Name string

const (
	EventNavigateToSection  Name = "navigation-to-section"
	EventOpenHelp           Name = "open-help"
	EventOpenThemePicker    Name = "open-theme-picker"
	EventCloseThemePicker   Name = "close-theme-picker"
	EventSetTheme           Name = "set-theme"
	EventExportSpreadsheet  Name = "export-to-spreadsheet"
	EventExportDocument     Name = "export-to-document"
	EventCreateRecord       Name = "create-record"
	EventEditRecord         Name = "edit-record"
	EventDeleteRecord       Name = "delete-record"
	EventActivateField      Name = "activate-field"
	EventRevealSecretField  Name = "reveal-secret-field"
	EventHideSecretField    Name = "hide-secret-field"
	EventClearActiveField   Name = "clear-active-field"
	EventConfirmActiveField Name = "confirm-active-field"
	EventCloseDialog        Name = "close-dialog"
	EventSaveDialog         Name = "save-dialog"
	EventInsertLiteralToken Name = "insert-literal-token"
	EventFreeDictation      Name = "free-dictation"
)

var knownNames = map[Name]struct{}{
	EventNavigateToSection:  {},
	EventOpenHelp:           {},
	EventOpenThemePicker:    {},
	EventCloseThemePicker:   {},
	EventSetTheme:           {},
	EventExportSpreadsheet:  {},
	EventExportDocument:     {},
	EventCreateRecord:       {},
	EventEditRecord:         {},
	EventDeleteRecord:       {},
	EventActivateField:      {},
	EventRevealSecretField:  {},
	EventHideSecretField:    {},
	EventClearActiveField:   {},
	EventConfirmActiveField: {},
	EventCloseDialog:        {},
	EventSaveDialog:         {},
	EventInsertLiteralToken: {},
	EventFreeDictation:      {},
}

// Known reports whether name belongs to the documented event set.
func Known(name Name) bool {
	_, ok := knownNames[name]
	return ok
}

// Event is one published notification.
type Event struct {
	Name   Name `json:"name"`
	Detail any  `json:"detail,omitempty"`
}

// ThemeDetail is the set-theme payload.
type ThemeDetail struct {
	Theme string `json:"theme"`
}

// RecordDetail is the create/edit/delete-record payload.
type RecordDetail struct {
	Identifier string `json:"identifier"`
}

// FieldDetail is the activate-field payload.
type FieldDetail struct {
	Field string `json:"field"`
}

// SecretDetail is the reveal/hide-secret-field payload.
type SecretDetail struct {
	Show bool `json:"show"`
}

// TextDetail carries literal tokens and free dictation.
type TextDetail struct {
	Text string `json:"text"`
}
