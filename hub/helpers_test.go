package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/sage-x-project/corehub/genparams"
	"github.com/sage-x-project/corehub/internal/logger"
)

var (
	sharedKeypairOnce sync.Once
	sharedKeypair     *genparams.Keypair
)

// testGenService returns a genparams.Service backed by a single RSA
// keypair shared across this package's tests (RSA-4096 generation is
// too slow to redo per test case).
func testGenService(t *testing.T) *genparams.Service {
	t.Helper()
	sharedKeypairOnce.Do(func() {
		kp, err := genparams.NewKeypair()
		if err != nil {
			t.Fatalf("generate shared test keypair: %v", err)
		}
		sharedKeypair = kp
	})
	return genparams.NewService(sharedKeypair)
}

func testLogger() logger.Logger {
	return logger.NewLogger(discardWriter{}, logger.FatalLevel+1)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeSender records every message handed to Send and lets tests
// assert on what the pipeline sent back.
type fakeSender struct {
	mu       sync.Mutex
	messages []any
	open     bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{open: true}
}

func (f *fakeSender) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, v)
	return nil
}

func (f *fakeSender) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSender) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
}

func (f *fakeSender) snapshot() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeSender) last() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

// countingState is the shape the fake reducer below mutates.
type countingState struct {
	Count int `json:"count"`
}

func incrementReducer(state any, action Action) any {
	s, _ := state.(countingState)
	if action.Type == "inc" {
		s.Count++
	}
	return s
}

func identityFilter(_ *FilterContext, action Action) (Verdict, error) {
	return Verdict{Kind: VerdictAccept, Action: action}, nil
}

func rewriteFilter(stamp string) ActionFilter {
	return func(_ *FilterContext, action Action) (Verdict, error) {
		data := make(map[string]any, len(action.Data)+1)
		for k, v := range action.Data {
			data[k] = v
		}
		data["serverStamp"] = stamp
		return Verdict{Kind: VerdictAccept, Action: Action{Type: action.Type, Data: data}, Rewritten: true}, nil
	}
}

func rejectFilter(_ *FilterContext, _ Action) (Verdict, error) {
	return Verdict{Kind: VerdictReject}, nil
}

func hydrateFixed(initial any, existsKeys map[string]bool) Hydrate {
	return func(_ context.Context, key string, _ any) (any, error) {
		if existsKeys != nil && !existsKeys[key] {
			return nil, nil
		}
		return initial, nil
	}
}

func connectEnvelope(t *testing.T, lastSeen string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"type": "connect", "lastSeen": lastSeen})
	if err != nil {
		t.Fatalf("marshal connect: %v", err)
	}
	return b
}

func actionEnvelope(t *testing.T, actionID string, actionData map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"type": "action", "actionId": actionID, "actionData": actionData})
	if err != nil {
		t.Fatalf("marshal action: %v", err)
	}
	return b
}
