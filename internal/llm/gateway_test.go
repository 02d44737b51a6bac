package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"nutricoach-api/internal/domain"
)

func samplePrior() []domain.Message {
	return []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "hi there"},
	}
}

func TestEchoGateway_QuotesMessage(t *testing.T) {
	reply, err := NewEchoGateway().GenerateReply(context.Background(), nil, "how much protein?")
	if err != nil {
		t.Fatalf("echo reply: %v", err)
	}
	if !strings.Contains(reply, "'how much protein?'") {
		t.Fatalf("expected quoted message, got %q", reply)
	}
}

func TestEchoGateway_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEchoGateway().GenerateReply(ctx, nil, "hi"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestBuildChatMessages_OrderAndWindow(t *testing.T) {
	msgs := buildChatMessages("be nice", samplePrior(), "what about carbs?")
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" || msgs[2].Role != "assistant" || msgs[3].Content != "what about carbs?" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	var long []domain.Message
	for i := 0; i < maxPriorMessages+5; i++ {
		long = append(long, domain.Message{Role: domain.RoleUser, Content: fmt.Sprint(i)})
	}
	msgs = buildChatMessages("", long, "last")
	if len(msgs) != maxPriorMessages+1 {
		t.Fatalf("expected window of %d + new message, got %d", maxPriorMessages, len(msgs))
	}
	if msgs[0].Content != "5" {
		t.Fatalf("expected oldest kept turn to be 5, got %q", msgs[0].Content)
	}
}

func TestOpenAIGateway_GenerateReply(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"  eat more greens  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGateway(srv.URL+"/", "test-key", "m", "system prompt", zap.NewNop())
	reply, err := g.GenerateReply(context.Background(), samplePrior(), "tips?")
	if err != nil {
		t.Fatalf("generate reply: %v", err)
	}
	if reply != "eat more greens" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages sent, got %d", len(msgs))
	}
}

func TestOpenAIGateway_Failures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"rate_limit"}}`))
		}))
		defer srv.Close()

		g := NewOpenAIGateway(srv.URL, "k", "m", "", nil)
		if _, err := g.GenerateReply(context.Background(), nil, "hi"); !errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`))
		}))
		defer srv.Close()

		g := NewOpenAIGateway(srv.URL, "k", "m", "", nil)
		if _, err := g.GenerateReply(context.Background(), nil, "hi"); !errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})
}

func TestHTTPGateway_GenerateReply(t *testing.T) {
	var got webhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer hook-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"drink water"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "hook-key", 2*time.Second)
	reply, err := g.GenerateReply(context.Background(), samplePrior(), "tips?")
	if err != nil {
		t.Fatalf("generate reply: %v", err)
	}
	if reply != "drink water" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got.Message != "tips?" || len(got.History) != 2 || got.History[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected webhook payload: %+v", got)
	}
}

func TestHTTPGateway_Failures(t *testing.T) {
	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		g := NewHTTPGateway(srv.URL, "", time.Second)
		if _, err := g.GenerateReply(context.Background(), nil, "hi"); !errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})

	t.Run("empty reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"reply":"   "}`))
		}))
		defer srv.Close()

		g := NewHTTPGateway(srv.URL, "", time.Second)
		if _, err := g.GenerateReply(context.Background(), nil, "hi"); !errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		g := NewHTTPGateway(srv.URL, "", 50*time.Millisecond)
		if _, err := g.GenerateReply(context.Background(), nil, "hi"); !errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})
}

func TestMockGateway_RecordsCalls(t *testing.T) {
	m := &MockGateway{Response: "ok"}
	prior := samplePrior()
	if _, err := m.GenerateReply(context.Background(), prior, "next"); err != nil {
		t.Fatalf("mock: %v", err)
	}
	prior[0].Content = "mutated"
	calls := m.Calls()
	if len(calls) != 1 || calls[0].Message != "next" || calls[0].Prior[0].Content != "hello" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}
