package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rag-assistant-be/internal/pkg/logger"
	"rag-assistant-be/pkg/prompts"
)

const (
	// ToolName is the function name exposed to the model.
	ToolName = "query_feedback_db"

	// RefusalMessage is returned for queries containing mutating
	// statements. The tool is read-only by contract.
	RefusalMessage = "This tool only runs read queries. Statements that modify data are not allowed."

	// EmptyResultMessage tells the model the query ran but matched
	// nothing.
	EmptyResultMessage = "The query ran successfully but returned no rows."

	// FailureMessage stands in for any execution error.
	FailureMessage = "The feedback database is temporarily unavailable, so this question cannot be answered right now."

	previewRowCap = 10
)

var deniedKeywords = []string{"DROP", "DELETE", "UPDATE"}

// QueryRunner executes a read query and returns column names plus
// row values.
type QueryRunner interface {
	RunReadQuery(ctx context.Context, query string) (columns []string, rows [][]interface{}, err error)
}

// Tool runs model-written SQL against the feedback store with a
// keyword guard and a bounded preview.
type Tool struct {
	runner   QueryRunner
	resolver prompts.Resolver
	log      logger.ILogger
}

func NewTool(runner QueryRunner, resolver prompts.Resolver, log logger.ILogger) *Tool {
	return &Tool{runner: runner, resolver: resolver, log: log}
}

type toolResult struct {
	RawData    []map[string]interface{} `json:"raw_data"`
	SystemNote string                   `json:"system_note,omitempty"`
}

// Query validates and runs the SQL, then wraps the bounded preview in
// the summarization instruction the model follows when answering.
func (t *Tool) Query(ctx context.Context, query string) string {
	if denied(query) {
		return RefusalMessage
	}

	columns, rows, err := t.runner.RunReadQuery(ctx, query)
	if err != nil {
		t.log.Error("structured", "query execution failed", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}
	if len(rows) == 0 {
		return EmptyResultMessage
	}

	total := len(rows)
	preview := rows
	if len(preview) > previewRowCap {
		preview = preview[:previewRowCap]
	}

	result := toolResult{
		RawData: make([]map[string]interface{}, len(preview)),
	}
	// The note exists to flag truncation; a result that fits the
	// preview carries none.
	if total > previewRowCap {
		result.SystemNote = fmt.Sprintf("Showing %d of %d rows.", len(preview), total)
	}
	for i, row := range preview {
		record := make(map[string]interface{}, len(columns))
		for j, col := range columns {
			if j < len(row) {
				record[col] = row[j]
			}
		}
		result.RawData[i] = record
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		t.log.Error("structured", "result encoding failed", map[string]interface{}{"error": err.Error()})
		return FailureMessage
	}

	wrapped, err := t.resolver.Resolve(ctx, prompts.SQLResultPrompt, map[string]string{
		"tool_output": string(encoded),
	})
	if err != nil {
		// The raw result still lets the model answer.
		return string(encoded)
	}
	return wrapped
}

// denied is a coarse textual guard, not a parser. It matches the
// uppercased statement against a fixed set of mutation keywords.
func denied(query string) bool {
	upper := strings.ToUpper(query)
	for _, kw := range deniedKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
