// Package tool defines tool descriptors, invocations, and the parser
// that extracts tool-call directives from model output.
package tool

import (
	"fmt"
	"time"
)

// Param describes one parameter in a tool's schema.
type Param struct {
	Type        string `json:"type"` // "string", "number", "boolean", "object", "array"
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Descriptor describes a tool advertised to the model.
type Descriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Params      map[string]Param `json:"params,omitempty"`
}

// ValidateArgs checks args against the descriptor's parameter spec:
// required fields must be present and declared primitive types must
// match. Unknown arguments are allowed.
func (d Descriptor) ValidateArgs(args map[string]any) error {
	for name, p := range d.Params {
		v, ok := args[name]
		if !ok {
			if p.Required {
				return fmt.Errorf("missing required argument %q", name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return fmt.Errorf("argument %q: expected %s", name, p.Type)
		}
	}
	return nil
}

func typeMatches(declared string, v any) bool {
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	}
	// Unknown declared type: accept anything.
	return true
}

// Invocation statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Invocation is a transient record of one tool call, created when a
// directive is parsed and resolved after the executor returns.
type Invocation struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Args     map[string]any `json:"args,omitempty"`
	Status   string         `json:"status"`
	Result   string         `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}
