package openaicompat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rag-assistant-be/pkg/llm"
)

func newCaptureServer(t *testing.T, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("reading request body: %v", err)
		}
		if err := json.Unmarshal(body, captured); err != nil {
			t.Fatalf("request body not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}]
		}`))
	}))
}

func TestChatZeroTemperatureReachesWire(t *testing.T) {
	var captured map[string]interface{}
	server := newCaptureServer(t, &captured)
	defer server.Close()

	provider := New("test-key", server.URL+"/v1", "test-model")
	_, err := provider.Generate(context.Background(), "rewrite this", llm.WithTemperature(0))
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	raw, ok := captured["temperature"]
	if !ok {
		t.Fatal("temperature missing from serialized request")
	}
	temp, ok := raw.(float64)
	if !ok {
		t.Fatalf("temperature is not a number: %T", raw)
	}
	if temp < 0 || temp > 1e-6 {
		t.Errorf("expected an effectively zero temperature, got %v", temp)
	}
}

func TestChatNonZeroTemperaturePassedThrough(t *testing.T) {
	var captured map[string]interface{}
	server := newCaptureServer(t, &captured)
	defer server.Close()

	provider := New("test-key", server.URL+"/v1", "test-model")
	_, err := provider.Generate(context.Background(), "hello", llm.WithTemperature(0.3))
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	temp, ok := captured["temperature"].(float64)
	if !ok {
		t.Fatal("temperature missing from serialized request")
	}
	if temp < 0.29 || temp > 0.31 {
		t.Errorf("expected temperature 0.3, got %v", temp)
	}
}
