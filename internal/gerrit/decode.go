package gerrit

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// XSSIPrefix is prepended by Gerrit to every JSON response body.
const XSSIPrefix = ")]}'"

// ParseError reports a body that could not be decoded into a JSON value.
type ParseError struct {
	Empty bool
	Err   error
}

func (e *ParseError) Error() string {
	if e.Empty {
		return "empty response body"
	}
	return fmt.Sprintf("invalid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StripXSSI removes the XSSI prefix and the whitespace that follows it.
// Text without the prefix is only trimmed.
func StripXSSI(text string) string {
	if strings.HasPrefix(text, XSSIPrefix) {
		return strings.TrimSpace(strings.TrimLeftFunc(text[len(XSSIPrefix):], unicode.IsSpace))
	}
	return strings.TrimSpace(text)
}

// Decode strips the XSSI prefix from text and parses the remainder as JSON.
func Decode(text string) (any, error) {
	body := StripXSSI(text)
	if body == "" {
		return nil, &ParseError{Empty: true}
	}
	var value any
	if err := json.Unmarshal([]byte(body), &value); err != nil {
		return nil, &ParseError{Err: err}
	}
	return value, nil
}

// versionFrom extracts the server version from a decoded version payload.
// ok is false when the payload is neither a string nor a JSON object.
func versionFrom(value any) (version string, ok bool) {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return unknownVersion, true
		}
		return v, true
	case map[string]any:
		if gv, isString := v["gerrit_version"].(string); isString && gv != "" {
			return gv, true
		}
		return unknownVersion, true
	default:
		return "", false
	}
}
