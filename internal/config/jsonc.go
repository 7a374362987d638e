package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tailscale/hujson"
)

// decodeJSONC decodes one JSONC document into payload.
// Unknown keys and anything after the top-level object are rejected.
func decodeJSONC(content string, payload *jsoncConfig) error {
	// Standardize blanks comments and trailing commas in place, so offsets still match the file.
	standard, err := hujson.Standardize([]byte(content))
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(standard))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		return locate(standard, err)
	}

	offset := decoder.InputOffset()
	if len(bytes.TrimSpace(standard[offset:])) > 0 {
		line, col := position(standard, offset+1)
		return fmt.Errorf("line %d column %d: unexpected content after the config object", line, col)
	}
	return nil
}

// locate prefixes decode errors that carry an offset with a line and column.
func locate(content []byte, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := position(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// position converts a 1-based byte offset into a 1-based line and column.
func position(content []byte, offset int64) (int, int) {
	if offset <= 1 {
		return 1, 1
	}
	end := int(offset) - 1
	if end > len(content) {
		end = len(content)
	}
	head := content[:end]
	line := bytes.Count(head, []byte{'\n'}) + 1
	col := end - bytes.LastIndexByte(head, '\n')
	return line, col
}
