package narrate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"cveroast/internal/report"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "deepseek-chat",
		"choices": []map[string]any{},
		"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	if content != "" {
		resp["choices"] = []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}}
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1/",
		Temperature: 0.7,
		Timeout:     timeout,
	}, zap.NewNop())
}

func TestNarrate_Success(t *testing.T) {
	var got chatRequest
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completion("  Your deps are older than Sheldon's comics. Bazinga!\n")))
	}, time.Minute)

	text := c.Narrate(context.Background(), "roast these")
	if text != "Your deps are older than Sheldon's comics. Bazinga!" {
		t.Errorf("unexpected narrative %q", text)
	}

	if got.Model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, got.Model)
	}
	if got.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "roast these" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestNarrate_Fallbacks(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(completion("")))
		},
		"blank content": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(completion("   ")))
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{not json`))
		},
	}

	for name, h := range cases {
		c := newClient(t, h, time.Minute)
		if got := c.Narrate(context.Background(), "p"); got != report.Fallback {
			t.Errorf("%s: expected fallback, got %q", name, got)
		}
	}
}

func TestNarrate_Timeout(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	if got := c.Narrate(context.Background(), "p"); got != report.Fallback {
		t.Errorf("expected fallback on timeout, got %q", got)
	}
}

func TestNarrate_TransportError(t *testing.T) {
	c := New(Options{APIKey: "k", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())
	if got := c.Narrate(context.Background(), "p"); got != report.Fallback {
		t.Errorf("expected fallback, got %q", got)
	}
}
