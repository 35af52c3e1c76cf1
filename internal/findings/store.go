package findings

import (
	"context"
	"encoding/json"
)

// Store is the persistence interface for findings.
//
// CompleteWorkOrder must be conditional at the store level: the finding's
// payload is replaced only if the stored payload does not already have the
// terminal shape, and the returned bool reports whether the write happened.
// Two racing completions cannot both succeed.
type Store interface {
	Put(ctx context.Context, f *Finding) error
	ListByInvestigation(ctx context.Context, investigationID string) ([]Finding, error)
	CompleteWorkOrder(ctx context.Context, findingID string, payload json.RawMessage, confidence float64, status string) (completed bool, err error)
}
