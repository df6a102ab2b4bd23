package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "- ship the cache") {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "boom"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestChatLabeler_Label(t *testing.T) {
	server := chatServer(t, http.StatusOK, "\"Cache rollout decisions.\"\n")
	defer server.Close()

	l := NewChatLabeler(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Logger: zap.NewNop()})
	label, err := l.Label(context.Background(), domain.LabelRequest{
		ClusterID:  "l1-0",
		Samples:    []string{"ship the cache", "rollback   plan"},
		Categories: []string{"decision"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "Cache rollout decisions" {
		t.Errorf("label = %q", label)
	}
}

func TestChatLabeler_APIError(t *testing.T) {
	server := chatServer(t, http.StatusInternalServerError, "")
	defer server.Close()

	l := NewChatLabeler(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Logger: zap.NewNop()})
	_, err := l.Label(context.Background(), domain.LabelRequest{Samples: []string{"ship the cache"}})
	if !errors.Is(err, domain.ErrLabelingFailed) {
		t.Errorf("expected ErrLabelingFailed, got %v", err)
	}
}

func TestChatLabeler_BlankLabel(t *testing.T) {
	server := chatServer(t, http.StatusOK, "  \"\"  ")
	defer server.Close()

	l := NewChatLabeler(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Logger: zap.NewNop()})
	_, err := l.Label(context.Background(), domain.LabelRequest{Samples: []string{"ship the cache"}})
	if !errors.Is(err, domain.ErrLabelingFailed) {
		t.Errorf("expected ErrLabelingFailed, got %v", err)
	}
}

func TestCleanLabel_Truncates(t *testing.T) {
	long := strings.Repeat("й", 100)
	if got := cleanLabel(long); len([]rune(got)) != maxLabelLen {
		t.Errorf("expected %d runes, got %d", maxLabelLen, len([]rune(got)))
	}
}
