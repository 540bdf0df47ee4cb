package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDecodeJSONPlain(t *testing.T) {
	var result map[string]any
	if err := DecodeJSON(`{"key": "value", "num": 42}`, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestDecodeJSONWithCodeFence(t *testing.T) {
	var result map[string]string
	if err := DecodeJSON("```json\n{\"key\": \"value\"}\n```", &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestDecodeJSONWithPlainFence(t *testing.T) {
	var result map[string]string
	if err := DecodeJSON("```\n{\"key\": \"value\"}\n```", &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	var result map[string]any
	if err := DecodeJSON("not json at all", &result); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if err := DecodeJSON("   ", &result); err == nil {
		t.Error("expected error for empty response")
	}
	if err := DecodeJSON("```\n```", &result); err == nil {
		t.Error("expected error for empty fence")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("gpt-4o-mini", "test-key")
	p.BaseURL = srv.URL
	out, err := p.Generate(context.Background(), "prompt", 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("unexpected content %q", out)
	}
}

func TestOpenAIWithoutKey(t *testing.T) {
	p := NewOpenAIProvider("gpt-4o-mini", "")
	if p.IsConfigured() {
		t.Error("expected unconfigured provider")
	}
	if _, err := p.Generate(context.Background(), "prompt", 64); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOllamaGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL)
	if _, err := p.Generate(context.Background(), "prompt", 64); err == nil {
		t.Error("expected error on HTTP 500")
	}
	if p.IsConfigured() {
		t.Error("expected unconfigured when tags endpoint fails")
	}
}
