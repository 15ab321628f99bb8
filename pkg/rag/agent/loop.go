package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"

	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/pkg/history"
	"rag-assistant-be/pkg/prompts"
	"rag-assistant-be/pkg/rag/retrieval"
)

// SourcesSentinel separates streamed prose from the citation payload
// that follows it. Clients strip everything from the marker onward
// before display.
const SourcesSentinel = "\n\n__SOURCES__\n"

// ErrorFragment is the single fragment a client receives when the
// model call fails mid-turn.
const ErrorFragment = "A system error occurred while generating the answer. Please try again."

type historyStore interface {
	Append(ctx context.Context, sessionID string, turns ...history.Turn) error
}

// Loop orchestrates one conversational turn: it assembles the model
// transcript, relays the executor's token stream, lifts citations out
// of retrieval tool results and persists the finished turn.
type Loop struct {
	runner   Runner
	resolver prompts.Resolver
	store    historyStore
	log      logger.ILogger
}

func NewLoop(runner Runner, resolver prompts.Resolver, store historyStore, log logger.ILogger) *Loop {
	return &Loop{runner: runner, resolver: resolver, store: store, log: log}
}

// Stream runs the turn and returns a channel of text fragments. The
// channel carries generated tokens in order, then optionally the
// sentinel plus the serialized citations, and is closed when the turn
// is over. rawQuestion is what gets persisted; condensedQuery is what
// the model reasons over.
func (l *Loop) Stream(ctx context.Context, sessionID, rawQuestion, condensedQuery string, turns []history.Turn) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		l.run(ctx, sessionID, rawQuestion, condensedQuery, turns, out)
	}()
	return out
}

func (l *Loop) run(ctx context.Context, sessionID, rawQuestion, condensedQuery string, turns []history.Turn, out chan<- string) {
	messages := l.buildMessages(ctx, condensedQuery, turns)

	var answer strings.Builder
	var citations []retrieval.Citation

	for event := range l.runner.Run(ctx, messages) {
		switch ev := event.(type) {
		case TokenEvent:
			answer.WriteString(ev.Text)
			out <- ev.Text
		case ToolCompletedEvent:
			if ev.Name != retrieval.ToolName {
				continue
			}
			if parsed, ok := parseCitations(ev.RawOutput); ok {
				// Only the latest retrieval's citations
				// survive the turn.
				citations = parsed
			} else {
				l.log.Warn("agent", "tool output had no parsable citations", map[string]interface{}{"tool": ev.Name})
			}
		case StreamEndEvent:
			if ev.Err != nil {
				l.log.Error("agent", "turn failed", map[string]interface{}{"error": ev.Err.Error(), "session_id": sessionID})
				out <- ErrorFragment
				return
			}
		}
	}

	if len(citations) > 0 {
		encoded, err := json.Marshal(citations)
		if err == nil {
			out <- SourcesSentinel + string(encoded)
		} else {
			l.log.Error("agent", "citation encoding failed", map[string]interface{}{"error": err.Error()})
		}
	}

	fullAnswer := answer.String()
	if fullAnswer == "" {
		return
	}
	err := l.store.Append(ctx, sessionID,
		history.Turn{Role: history.RoleUser, Content: rawQuestion},
		history.Turn{Role: history.RoleAssistant, Content: fullAnswer},
	)
	if err != nil {
		// The answer already reached the client; losing memory
		// of the turn is the lesser failure.
		l.log.Error("agent", "history save failed", map[string]interface{}{"error": err.Error(), "session_id": sessionID})
	}
}

// buildMessages assembles the system prompt, the prior turns and the
// current query. Stored turns with unrecognized roles are dropped.
func (l *Loop) buildMessages(ctx context.Context, condensedQuery string, turns []history.Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+2)

	system, err := l.resolver.Resolve(ctx, prompts.CoreSystemPrompt, map[string]string{
		"db_schema": prompts.DatabaseSchema,
	})
	if err != nil {
		l.log.Warn("agent", "system prompt resolution failed", map[string]interface{}{"error": err.Error()})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, turn := range turns {
		switch turn.Role {
		case history.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Content})
		case history.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Content})
		}
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: condensedQuery,
	})
}

// parseCitations decodes a retrieval tool output into its citation
// list. Fenced code block wrappers are stripped first; anything that
// is not the structured payload reports no citations.
func parseCitations(raw string) ([]retrieval.Citation, bool) {
	text := strings.TrimSpace(raw)
	text = stripFences(text)

	var payload retrieval.Payload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}
	return payload.Sources, true
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
