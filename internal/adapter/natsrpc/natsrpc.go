// Package natsrpc implements the retrieval and tool-execution ports
// over NATS request/reply, talking to the external worker that owns
// the knowledge index and the tool runtime.
package natsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ConvoSphere/convosphere/internal/domain"
	"github.com/ConvoSphere/convosphere/internal/domain/tool"
	"github.com/ConvoSphere/convosphere/internal/port/retrieval"
)

// Subjects of the worker protocol.
const (
	SubjectRetrievalSearch = "retrieval.search"
	SubjectToolExecute     = "tools.execute"
	SubjectToolList        = "tools.list"
)

// Conn wraps a NATS connection shared by the collaborator clients.
type Conn struct {
	nc      *nats.Conn
	timeout time.Duration
}

// Connect establishes a connection to NATS.
func Connect(url string, timeout time.Duration) (*Conn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	slog.Info("nats connected", "url", url)
	return &Conn{nc: nc, timeout: timeout}, nil
}

// Close shuts down the NATS connection.
func (c *Conn) Close() {
	c.nc.Close()
}

// IsConnected reports whether the connection is currently up.
func (c *Conn) IsConnected() bool {
	return c.nc.IsConnected()
}

// KeyValue returns a JetStream KV bucket, creating it with the given
// TTL when it does not exist yet.
func (c *Conn) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	js, err := jetstream.New(c.nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// request performs one JSON request/reply exchange under the connection
// timeout (or the caller's earlier deadline).
func (c *Conn) request(ctx context.Context, subject string, req, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}

	if err := json.Unmarshal(msg.Data, resp); err != nil {
		return fmt.Errorf("unmarshal %s reply: %w", subject, err)
	}
	return nil
}

// Retriever implements retrieval.Retriever against the worker.
type Retriever struct {
	conn *Conn
}

// NewRetriever creates a NATS-backed retriever.
func NewRetriever(conn *Conn) *Retriever {
	return &Retriever{conn: conn}
}

type searchRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters,omitempty"`
}

type searchReply struct {
	Passages []retrieval.Passage `json:"passages"`
	Error    string              `json:"error,omitempty"`
}

// Retrieve queries the worker's hybrid index.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filters map[string]string) ([]retrieval.Passage, error) {
	var reply searchReply
	err := r.conn.request(ctx, SubjectRetrievalSearch, searchRequest{
		Query:   query,
		TopK:    topK,
		Filters: filters,
	}, &reply)
	if err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, &domain.RetrievalFailure{Reason: reply.Error}
	}
	return reply.Passages, nil
}

// Executor implements toolexec.Executor against the worker.
type Executor struct {
	conn *Conn
}

// NewExecutor creates a NATS-backed tool executor.
func NewExecutor(conn *Conn) *Executor {
	return &Executor{conn: conn}
}

type executeRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type executeReply struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Execute runs the named tool on the worker.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	var reply executeReply
	err := e.conn.request(ctx, SubjectToolExecute, executeRequest{Tool: name, Args: args}, &reply)
	if err != nil {
		return "", err
	}
	if reply.Error != "" {
		return "", &domain.ToolExecutionError{Tool: name, Reason: reply.Error}
	}
	return reply.Result, nil
}

type listReply struct {
	Tools []tool.Descriptor `json:"tools"`
	Error string            `json:"error,omitempty"`
}

// ListTools returns the worker's tool catalog.
func (e *Executor) ListTools(ctx context.Context) ([]tool.Descriptor, error) {
	var reply listReply
	if err := e.conn.request(ctx, SubjectToolList, struct{}{}, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("list tools: %s", reply.Error)
	}
	return reply.Tools, nil
}
