package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"rag-assistant-be/pkg/history"
	"rag-assistant-be/pkg/prompts"
	"rag-assistant-be/pkg/rag/retrieval"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type scriptedRunner struct {
	events   []Event
	messages []openai.ChatCompletionMessage
}

func (s *scriptedRunner) Run(ctx context.Context, messages []openai.ChatCompletionMessage) <-chan Event {
	s.messages = messages
	out := make(chan Event)
	go func() {
		defer close(out)
		for _, ev := range s.events {
			out <- ev
		}
	}()
	return out
}

type recordingStore struct {
	sessionID string
	turns     []history.Turn
	err       error
	calls     int
}

func (r *recordingStore) Append(ctx context.Context, sessionID string, turns ...history.Turn) error {
	r.calls++
	r.sessionID = sessionID
	r.turns = append(r.turns, turns...)
	return r.err
}

func collect(ch <-chan string) []string {
	var fragments []string
	for f := range ch {
		fragments = append(fragments, f)
	}
	return fragments
}

func retrievalPayload(t *testing.T, citations []retrieval.Citation) string {
	t.Helper()
	raw, err := json.Marshal(retrieval.Payload{Content: "some passage", Sources: citations})
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestStreamTokensAndSentinel(t *testing.T) {
	citations := []retrieval.Citation{{File: "policy.pdf", Page: "4", Score: "1.20"}}
	runner := &scriptedRunner{events: []Event{
		ToolCompletedEvent{Name: retrieval.ToolName, RawOutput: retrievalPayload(t, citations)},
		TokenEvent{Text: "Refunds are "},
		TokenEvent{Text: "allowed within 30 days."},
		StreamEndEvent{},
	}}
	store := &recordingStore{}
	loop := NewLoop(runner, prompts.NewStaticResolver(), store, nopLogger{})

	fragments := collect(loop.Stream(context.Background(), "sess", "raw question", "condensed question", nil))

	joined := strings.Join(fragments, "")
	idx := strings.Index(joined, SourcesSentinel)
	if idx < 0 {
		t.Fatalf("sentinel missing from output: %q", joined)
	}
	prose := joined[:idx]
	if prose != "Refunds are allowed within 30 days." {
		t.Errorf("prose wrong: %q", prose)
	}

	var got []retrieval.Citation
	if err := json.Unmarshal([]byte(joined[idx+len(SourcesSentinel):]), &got); err != nil {
		t.Fatalf("citation payload not decodable: %v", err)
	}
	if len(got) != 1 || got[0].File != "policy.pdf" {
		t.Errorf("wrong citations: %+v", got)
	}
}

func TestStreamPersistsRawQuestionAndProse(t *testing.T) {
	runner := &scriptedRunner{events: []Event{
		TokenEvent{Text: "Hello"},
		TokenEvent{Text: " there."},
		StreamEndEvent{},
	}}
	store := &recordingStore{}
	loop := NewLoop(runner, prompts.NewStaticResolver(), store, nopLogger{})

	collect(loop.Stream(context.Background(), "sess-9", "what about after 30 days?", "what is the refund policy after 30 days?", nil))

	if store.calls != 1 {
		t.Fatalf("expected one save, got %d", store.calls)
	}
	if store.sessionID != "sess-9" {
		t.Errorf("wrong session: %q", store.sessionID)
	}
	if len(store.turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(store.turns))
	}
	if store.turns[0].Role != "user" || store.turns[0].Content != "what about after 30 days?" {
		t.Errorf("raw question not persisted: %+v", store.turns[0])
	}
	if store.turns[1].Role != "assistant" || store.turns[1].Content != "Hello there." {
		t.Errorf("persisted answer must exclude sentinel: %+v", store.turns[1])
	}
}

func TestStreamLastRetrievalWins(t *testing.T) {
	first := []retrieval.Citation{{File: "old.pdf", Page: "-", Score: "0.50"}}
	second := []retrieval.Citation{{File: "new.pdf", Page: "2", Score: "0.90"}}
	runner := &scriptedRunner{events: []Event{
		ToolCompletedEvent{Name: retrieval.ToolName, RawOutput: retrievalPayload(t, first)},
		ToolCompletedEvent{Name: retrieval.ToolName, RawOutput: retrievalPayload(t, second)},
		TokenEvent{Text: "answer"},
		StreamEndEvent{},
	}}
	loop := NewLoop(runner, prompts.NewStaticResolver(), &recordingStore{}, nopLogger{})

	joined := strings.Join(collect(loop.Stream(context.Background(), "s", "q", "q", nil)), "")
	if strings.Contains(joined, "old.pdf") {
		t.Error("earlier retrieval citations should be discarded")
	}
	if !strings.Contains(joined, "new.pdf") {
		t.Error("latest retrieval citations missing")
	}
}

func TestStreamFencedToolOutput(t *testing.T) {
	payload := retrievalPayload(t, []retrieval.Citation{{File: "doc.pdf", Page: "1", Score: "1.00"}})
	fenced := "```json\n" + payload + "\n```"
	runner := &scriptedRunner{events: []Event{
		ToolCompletedEvent{Name: retrieval.ToolName, RawOutput: fenced},
		TokenEvent{Text: "answer"},
		StreamEndEvent{},
	}}
	loop := NewLoop(runner, prompts.NewStaticResolver(), &recordingStore{}, nopLogger{})

	joined := strings.Join(collect(loop.Stream(context.Background(), "s", "q", "q", nil)), "")
	if !strings.Contains(joined, "doc.pdf") {
		t.Errorf("fenced payload not parsed: %q", joined)
	}
}

func TestStreamUnparsableToolOutputIgnored(t *testing.T) {
	runner := &scriptedRunner{events: []Event{
		ToolCompletedEvent{Name: retrieval.ToolName, RawOutput: retrieval.NotFoundMessage},
		TokenEvent{Text: "I could not find that."},
		StreamEndEvent{},
	}}
	store := &recordingStore{}
	loop := NewLoop(runner, prompts.NewStaticResolver(), store, nopLogger{})

	joined := strings.Join(collect(loop.Stream(context.Background(), "s", "q", "q", nil)), "")
	if strings.Contains(joined, SourcesSentinel) {
		t.Error("no citations should be emitted for unparsable tool output")
	}
	if store.calls != 1 {
		t.Error("turn with an answer should still be persisted")
	}
}

func TestStreamOtherToolOutputNotParsed(t *testing.T) {
	runner := &scriptedRunner{events: []Event{
		ToolCompletedEvent{Name: "query_feedback_db", RawOutput: retrievalPayload(t, []retrieval.Citation{{File: "x.pdf"}})},
		TokenEvent{Text: "answer"},
		StreamEndEvent{},
	}}
	loop := NewLoop(runner, prompts.NewStaticResolver(), &recordingStore{}, nopLogger{})

	joined := strings.Join(collect(loop.Stream(context.Background(), "s", "q", "q", nil)), "")
	if strings.Contains(joined, SourcesSentinel) {
		t.Error("citations must only come from the retrieval tool")
	}
}

func TestStreamFailureEmitsErrorFragmentAndSkipsPersist(t *testing.T) {
	runner := &scriptedRunner{events: []Event{
		TokenEvent{Text: "partial "},
		StreamEndEvent{Err: errors.New("upstream 500")},
	}}
	store := &recordingStore{}
	loop := NewLoop(runner, prompts.NewStaticResolver(), store, nopLogger{})

	fragments := collect(loop.Stream(context.Background(), "s", "q", "q", nil))
	if fragments[len(fragments)-1] != ErrorFragment {
		t.Errorf("expected error fragment last, got %q", fragments[len(fragments)-1])
	}
	if store.calls != 0 {
		t.Error("failed turn must not be persisted")
	}
}

func TestStreamHistoryConversionDropsUnknownRoles(t *testing.T) {
	runner := &scriptedRunner{events: []Event{StreamEndEvent{}}}
	loop := NewLoop(runner, prompts.NewStaticResolver(), &recordingStore{}, nopLogger{})

	turns := []history.Turn{
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "should be dropped"},
		{Role: "assistant", Content: "hello"},
	}
	collect(loop.Stream(context.Background(), "s", "q", "condensed", turns))

	var roles []string
	for _, m := range runner.messages {
		roles = append(roles, m.Role)
	}
	want := []string{openai.ChatMessageRoleSystem, openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant, openai.ChatMessageRoleUser}
	if len(roles) != len(want) {
		t.Fatalf("expected roles %v, got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("expected roles %v, got %v", want, roles)
		}
	}
	last := runner.messages[len(runner.messages)-1]
	if last.Content != "condensed" {
		t.Errorf("model must receive the condensed query, got %q", last.Content)
	}
}

func TestStreamPersistFailureDoesNotHideAnswer(t *testing.T) {
	runner := &scriptedRunner{events: []Event{
		TokenEvent{Text: "the answer"},
		StreamEndEvent{},
	}}
	store := &recordingStore{err: errors.New("redis down")}
	loop := NewLoop(runner, prompts.NewStaticResolver(), store, nopLogger{})

	joined := strings.Join(collect(loop.Stream(context.Background(), "s", "q", "q", nil)), "")
	if joined != "the answer" {
		t.Errorf("answer must still reach the client: %q", joined)
	}
}
