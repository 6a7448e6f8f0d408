// Package llmjson pulls JSON payloads out of free-form model answers.
package llmjson

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON value can be located in the text.
var ErrNoJSON = errors.New("no JSON found in model output")

// StripFences removes a surrounding markdown code fence (``` or ```json).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		lang := strings.TrimSpace(s[:nl])
		if lang == "" || !strings.ContainsAny(lang, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// FencedBlock returns the content of the first ```json fenced block, or the
// first generic fenced block, or "" when there is none.
func FencedBlock(s string) string {
	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(s, marker)
		if start < 0 {
			continue
		}
		rest := s[start+len(marker):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(rest[:end])
	}
	return ""
}

// FirstValue finds the first balanced top-level JSON object or array.
// Brackets inside string literals are ignored.
func FirstValue(s string) string {
	start, depth := -1, 0
	inString, escaped := false, false
	for i, ch := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{', '[':
			if depth == 0 {
				start = i
			}
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// Decode unmarshals the JSON carried by text into v. It tries the fenced
// block, then the whole text, then the first balanced value.
func Decode(text string, v any) error {
	candidates := []string{FencedBlock(text), StripFences(text), FirstValue(text)}
	var lastErr error
	for _, c := range candidates {
		if c == "" || !strings.ContainsAny(c[:1], "{[") {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrNoJSON
}
