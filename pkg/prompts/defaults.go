package prompts

// Prompt names known to the resolver. The CMS may override any of
// these; the constants below are the shipped fallbacks.
const (
	CoreSystemPrompt       = "rag-core-system"
	CondenseQuestionPrompt = "condense-question"
	SQLResultPrompt        = "tool-sql-result-instruction"
)

// DatabaseSchema describes the tables the structured query tool may
// read. Injected into the core system prompt so the model writes
// valid SQL unaided.
const DatabaseSchema = `Table: feedbacks
Columns:
  id          BIGINT, primary key
  session_id  VARCHAR(64), conversation the feedback belongs to
  question    TEXT, the user question being rated
  answer      TEXT, the assistant answer being rated
  rating      INT, 1 (negative) or 5 (positive)
  tags        JSON, array of category labels
  comment     TEXT, optional free-form note
  created_at  TIMESTAMP`

var defaults = map[string]string{
	CoreSystemPrompt: `You are an internal assistant that answers employee questions.

You have two tools:
1. lookup_policy_doc: searches the company knowledge base. Use it for any question about policies, procedures, benefits or internal documents.
2. query_feedback_db: runs a read-only SQL query against the feedback database. Use it only when the user asks about recorded feedback.

Database schema for query_feedback_db:
{db_schema}

Rules:
- Always ground answers in tool results. If the knowledge base has nothing relevant, say you could not find the answer.
- Never invent document contents or database rows.
- Answer in the language of the question.`,

	CondenseQuestionPrompt: `Given the conversation below and a follow-up question, rewrite the follow-up into a fully self-contained question. Preserve every identifier, code and number exactly as written. If the follow-up is already self-contained, return it unchanged. Return only the rewritten question with no preamble.

Conversation:
{chat_history}

Follow-up question: {question}`,

	SQLResultPrompt: `The query returned the data below. Summarize it for the user in plain language. Mention the total row count if the preview was truncated. Do not show raw SQL.

{tool_output}`,
}
