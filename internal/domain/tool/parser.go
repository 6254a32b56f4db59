package tool

import (
	"encoding/json"
	"strings"
)

// Directive markers embedded in free-form model output.
const (
	startMarker = "<tool_call>"
	endMarker   = "</tool_call>"
)

// Directive is one parsed tool-call request from model output.
type Directive struct {
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ParseResult holds the outcome of scanning a piece of model output.
// Malformed or partial directives never produce an error; they are left
// in the text and reported as warnings.
type ParseResult struct {
	Directives []Directive
	// Text is the output with well-formed directive blocks removed.
	Text     string
	Warnings []string
}

// Parse scans text for tool-call directives. The scanner looks for a
// start marker, captures up to the matching end marker, and attempts a
// structured decode of the captured payload. It always returns a
// result, never fails.
func Parse(text string) ParseResult {
	res := ParseResult{}
	var kept strings.Builder
	rest := text

	for {
		start := strings.Index(rest, startMarker)
		if start < 0 {
			kept.WriteString(rest)
			break
		}
		kept.WriteString(rest[:start])
		after := rest[start+len(startMarker):]

		end := strings.Index(after, endMarker)
		if end < 0 {
			// Unterminated directive: keep as plain text.
			res.Warnings = append(res.Warnings, "unterminated tool_call block")
			kept.WriteString(rest[start:])
			break
		}

		payload := strings.TrimSpace(after[:end])
		var d Directive
		if err := json.Unmarshal([]byte(payload), &d); err != nil || d.Name == "" {
			res.Warnings = append(res.Warnings, "malformed tool_call payload")
			// Keep the whole block as plain text.
			kept.WriteString(rest[start : start+len(startMarker)+end+len(endMarker)])
		} else {
			if d.Args == nil {
				d.Args = map[string]any{}
			}
			res.Directives = append(res.Directives, d)
		}

		rest = after[end+len(endMarker):]
	}

	res.Text = strings.TrimSpace(kept.String())
	return res
}

// FormatDirective renders a directive the way models are instructed to
// emit them. Used by tests and prompt construction.
func FormatDirective(name string, args map[string]any) string {
	payload, _ := json.Marshal(Directive{Name: name, Args: args})
	return startMarker + string(payload) + endMarker
}
