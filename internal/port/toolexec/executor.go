// Package toolexec defines the port for the external tool-execution
// runtime.
package toolexec

import (
	"context"

	"github.com/ConvoSphere/convosphere/internal/domain/tool"
)

// Executor runs tools on behalf of the model. Execution errors are
// reported as errors here; the tool middleware converts them into
// tool-result messages rather than call failures.
type Executor interface {
	// Execute runs the named tool and returns its textual result.
	Execute(ctx context.Context, name string, args map[string]any) (string, error)

	// ListTools returns descriptors for every available tool.
	ListTools(ctx context.Context) ([]tool.Descriptor, error)
}
