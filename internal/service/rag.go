package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ConvoSphere/convosphere/internal/adapter/otel"
	"github.com/ConvoSphere/convosphere/internal/config"
	"github.com/ConvoSphere/convosphere/internal/port/cache"
	"github.com/ConvoSphere/convosphere/internal/port/retrieval"

	"github.com/ConvoSphere/convosphere/internal/domain/chat"
)

// RAGMiddleware enriches requests with retrieved knowledge context.
// Retrieval failures degrade gracefully: the request is forwarded
// unmodified and the failure is logged, never surfaced.
type RAGMiddleware struct {
	retriever retrieval.Retriever
	cache     cache.Cache
	cfg       config.RAG
}

// NewRAGMiddleware creates the middleware. cache may be nil to disable
// the L1 passage cache.
func NewRAGMiddleware(r retrieval.Retriever, c cache.Cache, cfg config.RAG) *RAGMiddleware {
	return &RAGMiddleware{retriever: r, cache: c, cfg: cfg}
}

// Enrich queries the retrieval collaborator with the latest user
// message, packs the ranked passages into the configured token budget,
// and prepends them as a synthetic system context message. Returns the
// sources used for citation; empty on degradation.
func (m *RAGMiddleware) Enrich(ctx context.Context, req *chat.Request) []chat.Source {
	if m.retriever == nil {
		return nil
	}
	query := req.LastUserMessage()
	if query == "" {
		return nil
	}

	ctx, span := otel.StartRetrievalSpan(ctx, m.cfg.TopK)
	defer span.End()

	passages, err := m.retrieve(ctx, query)
	if err != nil {
		slog.Warn("rag: retrieval failed, forwarding request unmodified",
			"request_id", req.ID, "error", err)
		return nil
	}
	if len(passages) == 0 {
		return nil
	}

	kept := packPassages(passages, m.cfg.TokenBudget)
	if len(kept) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Relevant context retrieved for this conversation:\n")
	sources := make([]chat.Source, 0, len(kept))
	for _, p := range kept {
		fmt.Fprintf(&sb, "\n[source:%s]\n%s\n", p.SourceID, p.Text)
		sources = append(sources, chat.Source{SourceID: p.SourceID, Score: p.Score})
	}

	ctxMsg := chat.Message{Role: chat.RoleSystem, Content: sb.String()}
	req.Messages = append([]chat.Message{ctxMsg}, req.Messages...)

	slog.Debug("rag: context injected",
		"request_id", req.ID, "passages", len(kept), "budget", m.cfg.TokenBudget)
	return sources
}

// retrieve consults the L1 cache before the collaborator. The call runs
// under the configured retrieval timeout.
func (m *RAGMiddleware) retrieve(ctx context.Context, query string) ([]retrieval.Passage, error) {
	key := cacheKey(query, m.cfg.TopK)

	if m.cache != nil {
		if data, ok, err := m.cache.Get(ctx, key); err == nil && ok {
			var passages []retrieval.Passage
			if err := json.Unmarshal(data, &passages); err == nil {
				return passages, nil
			}
		}
	}

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	passages, err := m.retriever.Retrieve(ctx, query, m.cfg.TopK, nil)
	if err != nil {
		return nil, err
	}

	if m.cache != nil && len(passages) > 0 {
		if data, err := json.Marshal(passages); err == nil {
			_ = m.cache.Set(ctx, key, data, m.cfg.CacheTTL)
		}
	}
	return passages, nil
}

// packPassages keeps the highest-scoring passages that fit the token
// budget: sort by descending score (stable), then greedily take
// passages whose estimated size fits the remaining budget.
func packPassages(passages []retrieval.Passage, budget int) []retrieval.Passage {
	ranked := make([]retrieval.Passage, len(passages))
	copy(ranked, passages)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	var kept []retrieval.Passage
	remaining := budget
	for _, p := range ranked {
		tokens := estimateTokens(p.Text)
		if tokens > remaining {
			continue
		}
		kept = append(kept, p)
		remaining -= tokens
	}
	return kept
}

// estimateTokens approximates token count at 4 characters per token.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func cacheKey(query string, topK int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d:%s", topK, query))
	return "rag:" + hex.EncodeToString(sum[:16])
}
