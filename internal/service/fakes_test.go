package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ConvoSphere/convosphere/internal/domain/chat"
	"github.com/ConvoSphere/convosphere/internal/domain/tool"
	"github.com/ConvoSphere/convosphere/internal/port/provider"
	"github.com/ConvoSphere/convosphere/internal/port/retrieval"
)

// fakeHandle replays scripted provider results in order. The last
// script entry repeats when the loop dispatches more rounds than
// scripted.
type fakeHandle struct {
	mu      sync.Mutex
	script  []provider.Result
	err     error
	calls   int
	lastReq chat.Request
}

func (f *fakeHandle) Complete(_ context.Context, req chat.Request) (*provider.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	res := f.script[i]
	return &res, nil
}

func (f *fakeHandle) CompleteStream(ctx context.Context, req chat.Request) (<-chan provider.StreamEvent, error) {
	res, err := f.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(chan provider.StreamEvent, len(res.Content)+1)
	for _, r := range res.Content {
		out <- provider.StreamEvent{Delta: string(r)}
	}
	out <- provider.StreamEvent{Done: true, Result: res}
	close(out)
	return out, nil
}

func (f *fakeHandle) Embed(_ context.Context, _, _ string) ([]float64, chat.Usage, error) {
	if f.err != nil {
		return nil, chat.Usage{}, f.err
	}
	return []float64{0.1, 0.2, 0.3}, chat.Usage{TokensIn: 3}, nil
}

func (f *fakeHandle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRetriever returns canned passages or an error.
type fakeRetriever struct {
	passages []retrieval.Passage
	err      error
	calls    int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int, _ map[string]string) ([]retrieval.Passage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

// fakeExecutor maps tool names to canned results.
type fakeExecutor struct {
	tools   []tool.Descriptor
	results map[string]string
	err     error
	listErr error
	calls   []string
}

func (f *fakeExecutor) Execute(_ context.Context, name string, _ map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	res, ok := f.results[name]
	if !ok {
		return "", fmt.Errorf("no canned result for %s", name)
	}
	return res, nil
}

func (f *fakeExecutor) ListTools(_ context.Context) ([]tool.Descriptor, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

// fakeHub records broadcast events.
type fakeHub struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	Type    string
	Payload any
}

func (f *fakeHub) BroadcastEvent(_ context.Context, eventType string, payload any) {
	f.mu.Lock()
	f.events = append(f.events, broadcastEvent{Type: eventType, Payload: payload})
	f.mu.Unlock()
}

func (f *fakeHub) byType(eventType string) []broadcastEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcastEvent
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeCache is an in-memory cache used by RAG tests.
type fakeCache struct {
	data map[string][]byte
	sets int
	gets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	f.gets++
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.sets++
	f.data[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func lookupDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "lookup",
		Description: "Look up a fact",
		Params: map[string]tool.Param{
			"q": {Type: "string", Required: true},
		},
	}
}
