package condenser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rag-assistant-be/pkg/history"
	"rag-assistant-be/pkg/llm"
	"rag-assistant-be/pkg/prompts"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeLLM struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeLLM) Chat(ctx context.Context, hist []llm.Message, opts ...llm.Option) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.response, f.err
}

func someHistory() []history.Turn {
	return []history.Turn{
		{Role: "user", Content: "what is the leave policy?"},
		{Role: "assistant", Content: "Employees get 12 days per year."},
	}
}

func TestCondenseEmptyHistoryBypassesLLM(t *testing.T) {
	provider := &fakeLLM{response: "should not be used"}
	c := New(provider, prompts.NewStaticResolver(), "fast-model", nopLogger{})

	got := c.Condense(context.Background(), "how many days do I get?", nil)
	if got != "how many days do I get?" {
		t.Errorf("expected passthrough, got %q", got)
	}
	if provider.calls != 0 {
		t.Errorf("expected no LLM calls, got %d", provider.calls)
	}
}

func TestCondenseShortCodeFastPath(t *testing.T) {
	tests := []struct {
		name     string
		question string
		skip     bool
	}{
		{"employee id", "EMP12345", true},
		{"error code", "ERR-404-X", true},
		{"short words only", "and then?", false},
		{"short digits only", "12345", false},
		{"long with digits", "what does policy section 12 say about remote work?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeLLM{response: "rewritten question"}
			c := New(provider, prompts.NewStaticResolver(), "fast-model", nopLogger{})

			got := c.Condense(context.Background(), tt.question, someHistory())
			if tt.skip {
				if got != tt.question {
					t.Errorf("expected passthrough for %q, got %q", tt.question, got)
				}
				if provider.calls != 0 {
					t.Errorf("expected no LLM calls for %q", tt.question)
				}
			} else {
				if got != "rewritten question" {
					t.Errorf("expected rewrite for %q, got %q", tt.question, got)
				}
			}
		})
	}
}

func TestCondenseWindowAndTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	turns := []history.Turn{
		{Role: "user", Content: "OLDEST_TURN"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: long},
		{Role: "assistant", Content: "fourth"},
		{Role: "user", Content: "fifth"},
	}

	provider := &fakeLLM{response: "rewritten"}
	c := New(provider, prompts.NewStaticResolver(), "fast-model", nopLogger{})
	c.Condense(context.Background(), "and then?", turns)

	if strings.Contains(provider.lastPrompt, "OLDEST_TURN") {
		t.Error("oldest turn should fall outside the window")
	}
	if !strings.Contains(provider.lastPrompt, "fifth") {
		t.Error("latest turn missing from prompt")
	}
	if strings.Contains(provider.lastPrompt, long) {
		t.Error("long turn should be clipped")
	}
	if !strings.Contains(provider.lastPrompt, strings.Repeat("x", 200)+"...") {
		t.Error("clipped turn should end with ellipsis")
	}
	if !strings.Contains(provider.lastPrompt, "User: ") || !strings.Contains(provider.lastPrompt, "Assistant: ") {
		t.Error("expected labeled turns in prompt")
	}
}

func TestCondenseStripsQuotes(t *testing.T) {
	provider := &fakeLLM{response: `"What is the annual leave allowance?"`}
	c := New(provider, prompts.NewStaticResolver(), "fast-model", nopLogger{})

	got := c.Condense(context.Background(), "how many days?", someHistory())
	if got != "What is the annual leave allowance?" {
		t.Errorf("expected quotes stripped, got %q", got)
	}
}

func TestCondenseFailureReturnsOriginal(t *testing.T) {
	provider := &fakeLLM{err: errors.New("model unavailable")}
	c := New(provider, prompts.NewStaticResolver(), "fast-model", nopLogger{})

	got := c.Condense(context.Background(), "how many days?", someHistory())
	if got != "how many days?" {
		t.Errorf("expected original on failure, got %q", got)
	}
}

func TestCondenseEmptyRewriteReturnsOriginal(t *testing.T) {
	provider := &fakeLLM{response: "   "}
	c := New(provider, prompts.NewStaticResolver(), "fast-model", nopLogger{})

	got := c.Condense(context.Background(), "how many days?", someHistory())
	if got != "how many days?" {
		t.Errorf("expected original on empty rewrite, got %q", got)
	}
}
