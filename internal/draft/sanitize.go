package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sanitize turns raw completion text into a single JSON object candidate.
//
//   - surrounding whitespace and a markdown code fence are removed
//   - text with neither brace is wrapped in {}
//   - text with both is cut from the first '{' to the last '}'
//   - text with only a closing brace gets the opening one prepended
//   - text with an opening brace but no closing one is rejected with
//     ErrTruncated
func Sanitize(raw string) (string, error) {
	s := stripFence(strings.TrimSpace(raw))
	open, close := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	switch {
	case s == "":
		return "", errors.New("draft: empty completion")
	case open < 0 && close < 0:
		return "{" + s + "}", nil
	case open < 0:
		return "{" + s[:close+1], nil
	case close < 0 || close < open:
		return "", ErrTruncated
	default:
		return s[open : close+1], nil
	}
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an info string such as ```json
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// fields is the strict shape of a generated task.
type fields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Parse sanitizes raw and strictly decodes it: one JSON object whose title
// and description, when present, are strings, with nothing after it.
func Parse(raw string) (title, description string, err error) {
	s, err := Sanitize(raw)
	if err != nil {
		return "", "", err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	var f fields
	if err := dec.Decode(&f); err != nil {
		return "", "", fmt.Errorf("draft: parse: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", "", errors.New("draft: parse: trailing data after object")
	}
	return strings.TrimSpace(f.Title), strings.TrimSpace(f.Description), nil
}
