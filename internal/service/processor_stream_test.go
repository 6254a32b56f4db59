package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/chat"
	"github.com/ConvoSphere/convosphere/internal/domain/tool"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
)

func collectChunks(t *testing.T, chunks <-chan chat.Chunk) (deltas []string, final *chat.Response, errs []error) {
	t.Helper()
	for c := range chunks {
		switch {
		case c.Err != nil:
			errs = append(errs, c.Err)
		case c.Final:
			final = c.Response
		case c.Delta != "":
			deltas = append(deltas, c.Delta)
		}
	}
	return deltas, final, errs
}

func TestCompleteStreamForwardsDeltas(t *testing.T) {
	f := newProcFixture([]provider.Result{
		{Content: "4", Usage: chat.Usage{TokensIn: 5, TokensOut: 1}},
	}, config.Budget{})

	chunks, err := f.processor.CompleteStream(context.Background(), Input{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "what is 2+2?"}},
		Stream:   true,
		UserID:   "alice",
	})
	if err != nil {
		t.Fatal(err)
	}

	deltas, final, errs := collectChunks(t, chunks)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if strings.Join(deltas, "") != "4" {
		t.Errorf("deltas = %v", deltas)
	}
	if final == nil {
		t.Fatal("missing terminal chunk")
	}
	if final.Content != "4" || final.Usage.TokensIn != 5 {
		t.Errorf("final = %+v", final)
	}
	if recs := f.ledger.Records(); len(recs) != 1 {
		t.Errorf("ledger records = %d", len(recs))
	}
}

func TestCompleteStreamResolvesToolsAfterAssembly(t *testing.T) {
	f := newProcFixture([]provider.Result{
		{Content: tool.FormatDirective("lookup", map[string]any{"q": "x"}), Usage: chat.Usage{TokensIn: 10, TokensOut: 8}},
		{Content: "The answer is 42", Usage: chat.Usage{TokensIn: 25, TokensOut: 4}},
	}, config.Budget{})

	chunks, err := f.processor.CompleteStream(context.Background(), Input{
		Messages:     []chat.Message{{Role: chat.RoleUser, Content: "look it up"}},
		Stream:       true,
		ToolsEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, final, errs := collectChunks(t, chunks)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if final == nil {
		t.Fatal("missing terminal chunk")
	}
	if final.Content != "The answer is 42" {
		t.Errorf("final content = %q", final.Content)
	}
	if len(final.ToolCalls) != 1 {
		t.Errorf("tool calls = %+v", final.ToolCalls)
	}
	if final.Usage.TokensIn != 35 || final.Usage.TokensOut != 12 {
		t.Errorf("usage = %+v", final.Usage)
	}
	// Streamed round plus one follow-up round.
	if recs := f.ledger.Records(); len(recs) != 2 {
		t.Errorf("ledger records = %d, want 2", len(recs))
	}
}

func TestCompleteStreamBudgetRejection(t *testing.T) {
	f := newProcFixture([]provider.Result{{Content: "never"}}, config.Budget{
		HardDailyUSD:      0.0001,
		ExpectedOutTokens: 512,
	})

	_, err := f.processor.CompleteStream(context.Background(), Input{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "a question long enough to be priced above zero"}},
		Stream:   true,
		UserID:   "alice",
	})

	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("err = %v", err)
	}
	if f.handle.callCount() != 0 {
		t.Errorf("provider calls = %d", f.handle.callCount())
	}
}

func TestCompleteStreamValidationFailure(t *testing.T) {
	f := newProcFixture([]provider.Result{{Content: "never"}}, config.Budget{})

	_, err := f.processor.CompleteStream(context.Background(), Input{Stream: true})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
