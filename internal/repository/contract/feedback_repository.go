package contract

import (
	"context"

	"rag-assistant-be/internal/entity"
)

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error

	// RunReadQuery executes an ad hoc read statement and returns
	// column names plus row values. Callers are responsible for
	// guarding what they pass in.
	RunReadQuery(ctx context.Context, query string) (columns []string, rows [][]interface{}, err error)
}
