package condenser

import (
	"context"
	"strings"
	"unicode"

	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/pkg/history"
	"rag-assistant-be/pkg/llm"
	"rag-assistant-be/pkg/prompts"
)

const (
	// Short inputs mixing letters and digits are almost always
	// codes or identifiers, not follow-up questions. Rewriting
	// them risks mangling the identifier, so they pass through.
	shortCodeMaxLen = 20

	// Only the most recent exchanges matter for disambiguating a
	// follow-up. Older turns add noise and tokens.
	historyWindow = 4

	// Long turns are clipped so the rewrite prompt stays small.
	turnMaxChars = 200
)

// Condenser rewrites a follow-up question into a self-contained one
// using recent conversation history.
type Condenser struct {
	provider llm.LLMProvider
	resolver prompts.Resolver
	model    string
	log      logger.ILogger
}

func New(provider llm.LLMProvider, resolver prompts.Resolver, model string, log logger.ILogger) *Condenser {
	return &Condenser{
		provider: provider,
		resolver: resolver,
		model:    model,
		log:      log,
	}
}

// Condense returns the standalone form of question. The original
// question is returned unchanged when there is no history to draw
// from, when the input looks like a bare identifier, or when the
// rewrite fails for any reason.
func (c *Condenser) Condense(ctx context.Context, question string, turns []history.Turn) string {
	if len(turns) == 0 {
		return question
	}
	if looksLikeCode(question) {
		return question
	}

	prompt, err := c.resolver.Resolve(ctx, prompts.CondenseQuestionPrompt, map[string]string{
		"chat_history": formatHistory(turns),
		"question":     question,
	})
	if err != nil {
		c.log.Warn("condenser", "prompt unavailable, using original question", map[string]interface{}{"error": err.Error()})
		return question
	}

	rewritten, err := c.provider.Generate(ctx, prompt, llm.WithTemperature(0), llm.WithModel(c.model))
	if err != nil {
		c.log.Warn("condenser", "rewrite failed, using original question", map[string]interface{}{"error": err.Error()})
		return question
	}

	rewritten = strings.TrimSpace(rewritten)
	rewritten = strings.Trim(rewritten, `"'`)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// looksLikeCode reports whether the input is a short token mixing
// letters and digits, e.g. an employee ID or an error code.
func looksLikeCode(question string) bool {
	trimmed := strings.TrimSpace(question)
	if len(trimmed) >= shortCodeMaxLen {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// formatHistory renders the last turns as labeled lines, clipping
// each turn's content.
func formatHistory(turns []history.Turn) string {
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}

	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		label := "User"
		if turn.Role == history.RoleAssistant {
			label = "Assistant"
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(clip(turn.Content, turnMaxChars))
	}
	return sb.String()
}

func clip(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
