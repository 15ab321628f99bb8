package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"rag-assistant-be/internal/pkg/logger"
)

// ToolFunc executes one tool call. It returns plain text; failures
// are reported inside the text, never as an error, so the model can
// relay them.
type ToolFunc func(ctx context.Context, arguments string) string

// Tool describes a callable function exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Run         ToolFunc
}

// Runner produces the event stream for one turn. The channel is
// closed after a StreamEndEvent is sent.
type Runner interface {
	Run(ctx context.Context, messages []openai.ChatCompletionMessage) <-chan Event
}

// maxToolRounds bounds how many times the model may chain tool calls
// in a single turn before the stream is cut.
const maxToolRounds = 5

// Executor drives a streaming chat completion that may call tools.
// Tool calls are executed sequentially; after each round the
// transcript grows by the assistant's call and the tool results, and
// the model is invoked again until it produces a plain answer.
type Executor struct {
	client *openai.Client
	model  string
	tools  []Tool
	log    logger.ILogger
}

func NewExecutor(client *openai.Client, model string, tools []Tool, log logger.ILogger) *Executor {
	return &Executor{client: client, model: model, tools: tools, log: log}
}

func (e *Executor) Run(ctx context.Context, messages []openai.ChatCompletionMessage) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		err := e.run(ctx, messages, out)
		out <- StreamEndEvent{Err: err}
	}()
	return out
}

func (e *Executor) run(ctx context.Context, messages []openai.ChatCompletionMessage, out chan<- Event) error {
	transcript := make([]openai.ChatCompletionMessage, len(messages))
	copy(transcript, messages)

	toolDefs := make([]openai.Tool, len(e.tools))
	for i, t := range e.tools {
		toolDefs[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}

	for round := 0; round <= maxToolRounds; round++ {
		calls, err := e.streamOnce(ctx, transcript, toolDefs, out)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}

		transcript = append(transcript, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: calls,
		})
		for _, call := range calls {
			result := e.execute(ctx, call)
			out <- ToolCompletedEvent{Name: call.Function.Name, RawOutput: result}
			transcript = append(transcript, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
	return fmt.Errorf("tool call limit reached after %d rounds", maxToolRounds)
}

// streamOnce runs one streamed completion. Content deltas are emitted
// as TokenEvents; tool call deltas are accumulated and returned in
// full once the stream finishes.
func (e *Executor) streamOnce(ctx context.Context, transcript []openai.ChatCompletionMessage, toolDefs []openai.Tool, out chan<- Event) ([]openai.ToolCall, error) {
	req := openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: transcript,
		Tools:    toolDefs,
		Stream:   true,
	}

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	var calls []openai.ToolCall
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream read failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			out <- TokenEvent{Text: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			calls = mergeToolCallDelta(calls, tc)
		}
	}
	return calls, nil
}

// mergeToolCallDelta folds a streamed tool call fragment into the
// accumulated list. Fragments for one call share an index; name and
// id arrive first, argument text trickles in afterwards.
func mergeToolCallDelta(calls []openai.ToolCall, delta openai.ToolCall) []openai.ToolCall {
	idx := len(calls)
	if delta.Index != nil {
		idx = *delta.Index
	}
	for len(calls) <= idx {
		calls = append(calls, openai.ToolCall{Type: openai.ToolTypeFunction})
	}
	if delta.ID != "" {
		calls[idx].ID = delta.ID
	}
	if delta.Function.Name != "" {
		calls[idx].Function.Name = delta.Function.Name
	}
	calls[idx].Function.Arguments += delta.Function.Arguments
	return calls
}

func (e *Executor) execute(ctx context.Context, call openai.ToolCall) string {
	for _, t := range e.tools {
		if t.Name == call.Function.Name {
			e.log.Info("agent", "executing tool", map[string]interface{}{"tool": t.Name})
			return t.Run(ctx, call.Function.Arguments)
		}
	}
	e.log.Warn("agent", "model requested unknown tool", map[string]interface{}{"tool": call.Function.Name})
	return fmt.Sprintf("Unknown tool: %s", call.Function.Name)
}
