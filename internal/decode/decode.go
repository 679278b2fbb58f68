// Package decode reconstructs plain-text agent answers from the several
// framing variants the marketplace backend is known to emit: one JSON token
// object per line, JSON objects concatenated with no separator, already-parsed
// token arrays, and keyed wrapper objects whose text field may itself hold a
// double-encoded token stream.
package decode

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// objectBoundary matches the seam between two concatenated JSON objects:
// a closing brace followed (possibly across whitespace) by an opening one.
var objectBoundary = regexp.MustCompile(`\}\s*\{`)

// textKeys are the wrapper fields checked when unwrapping a keyed object,
// in priority order. The backend's duplicated implementations disagreed on
// the order of response vs result; response wins here, uniformly.
var textKeys = []string{"response", "result", "text", "content"}

// Decode turns a raw response body into the best-effort plain-text answer.
// It never fails: any input that matches none of the known framings is
// returned verbatim.
//
// Strategies are tried in order, first success wins:
//  1. newline-delimited token objects
//  2. concatenated token objects with no delimiter
//  3. a single JSON value (array of tokens, keyed wrapper object)
//  4. the literal string
//
// Token framings are checked before generic unwrapping because a wrapper
// object's text field can itself contain an unassembled token stream.
func Decode(raw string) string {
	if raw == "" {
		return ""
	}
	// Plain-text fast path: no brace structure means no JSON framing.
	if !strings.ContainsAny(raw, "{}") {
		return raw
	}
	if text, ok := decodeTokenLines(raw); ok {
		return text
	}
	if text, ok := decodeConcatenated(raw); ok {
		return text
	}
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err == nil {
		if text, ok := decodeParsed(v); ok {
			return text
		}
	}
	return raw
}

// DecodeValue decodes an already-parsed value (object, array, or primitive).
// Strings go through the full Decode path; structured values that match no
// known shape are pretty-printed rather than dropped.
func DecodeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Decode(t)
	default:
		if text, ok := decodeParsed(v); ok {
			return text
		}
		return prettyJSON(v)
	}
}

// decodeTokenLines handles one JSON token object per line. All non-blank
// lines must parse as {type:"token",content:<string>}; a single miss
// abandons the strategy entirely.
func decodeTokenLines(raw string) (string, bool) {
	var b strings.Builder
	matched := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		content, ok := parseTokenObject(line)
		if !ok {
			return "", false
		}
		b.WriteString(content)
		matched = true
	}
	return b.String(), matched
}

// decodeConcatenated handles objects glued together with no delimiter
// ("}{", or "}" whitespace "{"). A synthetic comma is inserted at each seam
// and the result parsed as an array of token objects.
func decodeConcatenated(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return "", false
	}
	if !objectBoundary.MatchString(trimmed) {
		return "", false
	}
	joined := objectBoundary.ReplaceAllString(trimmed, "},{")
	var frames []any
	if err := json.Unmarshal([]byte("["+joined+"]"), &frames); err != nil {
		return "", false
	}
	return joinStrictTokens(frames)
}

// decodeParsed applies the array and keyed-object strategies to a parsed
// JSON value.
func decodeParsed(v any) (string, bool) {
	switch t := v.(type) {
	case []any:
		return joinFilteredTokens(t)
	case map[string]any:
		return unwrapKeyed(t)
	case string:
		return Decode(t), true
	}
	return "", false
}

// unwrapKeyed selects the first present field among the known text keys.
// String values recurse through Decode so a double-encoded token stream
// inside the wrapper is reassembled; anything else is stringified.
func unwrapKeyed(m map[string]any) (string, bool) {
	for _, key := range textKeys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if s, isString := v.(string); isString {
			return Decode(s), true
		}
		return prettyJSON(v), true
	}
	return "", false
}

// joinStrictTokens concatenates content fields, requiring every frame to be
// a token object. Used by the line and concatenation strategies, which give
// no partial credit.
func joinStrictTokens(frames []any) (string, bool) {
	if len(frames) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, frame := range frames {
		m, ok := frame.(map[string]any)
		if !ok {
			return "", false
		}
		content, ok := tokenContent(m)
		if !ok {
			return "", false
		}
		b.WriteString(content)
	}
	return b.String(), true
}

// joinFilteredTokens concatenates content from token entries with non-empty
// content, skipping anything else. Used for already-parsed arrays, where
// the backend mixes token frames with status frames.
func joinFilteredTokens(frames []any) (string, bool) {
	var b strings.Builder
	matched := false
	for _, frame := range frames {
		m, ok := frame.(map[string]any)
		if !ok {
			continue
		}
		content, ok := tokenContent(m)
		if !ok || content == "" {
			continue
		}
		b.WriteString(content)
		matched = true
	}
	return b.String(), matched
}

func parseTokenObject(line string) (string, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return "", false
	}
	return tokenContent(m)
}

func tokenContent(m map[string]any) (string, bool) {
	if m["type"] != "token" {
		return "", false
	}
	content, ok := m["content"].(string)
	return content, ok
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
