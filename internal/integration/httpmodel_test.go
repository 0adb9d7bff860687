package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPModelClient_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"# PRD"}},{"message":{"role":"assistant","content":"ignored"}}]}`))
	}))
	defer srv.Close()

	client := NewHTTPModelClient(srv.URL+"/v1/", "deepseek-chat", "sk-test", 5*time.Second)
	text, err := client.Generate(context.Background(), "Build a todo app")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "# PRD" {
		t.Errorf("text = %q, want first choice", text)
	}
	if got.Model != "deepseek-chat" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "Build a todo app" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestHTTPModelClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPModelClient(srv.URL, "m", "bad", time.Second).Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("err = %v", err)
	}
}

func TestHTTPModelClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPModelClient(srv.URL, "m", "k", time.Second).Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected an error for an empty choice list")
	}
}

func TestHTTPModelClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	if _, err := NewHTTPModelClient(srv.URL, "m", "k", time.Second).Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestHTTPModelClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewHTTPModelClient(srv.URL, "m", "k", 50*time.Millisecond).Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("Generate was not bounded by its timeout")
	}
}
