package service

import (
	"context"
	"encoding/json"
	"strings"

	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/pkg/events"
	"rag-assistant-be/pkg/history"
	"rag-assistant-be/pkg/nats"
	"rag-assistant-be/pkg/rag/agent"
	"rag-assistant-be/pkg/rag/condenser"
)

type IChatService interface {
	// StreamAnswer runs one conversational turn and returns the
	// ordered fragments to write to the client.
	StreamAnswer(ctx context.Context, sessionID, message string) <-chan string
}

type chatService struct {
	condenser *condenser.Condenser
	loop      *agent.Loop
	histStore *history.Store
	publisher *nats.Publisher
	log       logger.ILogger
}

func NewChatService(
	cond *condenser.Condenser,
	loop *agent.Loop,
	histStore *history.Store,
	publisher *nats.Publisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		condenser: cond,
		loop:      loop,
		histStore: histStore,
		publisher: publisher,
		log:       log,
	}
}

func (s *chatService) StreamAnswer(ctx context.Context, sessionID, message string) <-chan string {
	turns := s.histStore.Get(ctx, sessionID)
	condensed := s.condenser.Condense(ctx, message, turns)

	s.log.Info("chat", "turn started", map[string]interface{}{
		"session_id": sessionID,
		"condensed":  condensed != message,
	})

	inner := s.loop.Stream(ctx, sessionID, message, condensed, turns)

	out := make(chan string)
	go func() {
		defer close(out)
		var answerLen, citationCount int
		for fragment := range inner {
			if strings.HasPrefix(fragment, agent.SourcesSentinel) {
				citationCount = countCitations(fragment[len(agent.SourcesSentinel):])
			} else {
				answerLen += len(fragment)
			}
			out <- fragment
		}
		s.audit(ctx, sessionID, len(message), answerLen, citationCount)
	}()
	return out
}

// audit emits a turn-completed event for downstream analytics. Event
// delivery is best effort.
func (s *chatService) audit(ctx context.Context, sessionID string, questionLen, answerLen, citationCount int) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.NewTurnCompletedEvent(sessionID, questionLen, answerLen, citationCount))
	if err != nil {
		s.log.Warn("chat", "audit event publish failed", map[string]interface{}{"error": err.Error()})
	}
}

func countCitations(payload string) int {
	var citations []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &citations); err != nil {
		return 0
	}
	return len(citations)
}
