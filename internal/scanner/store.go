package scanner

import (
	"context"
	"time"
)

// Store is the persistence interface for subjects and alerts.
//
// InsertAlertIfAbsent must be conditional at the store level: the alert is
// written only if no alert with the same (subject, fingerprint) exists at the
// moment of insertion, and the returned bool reports whether a row was
// actually created. Correctness never depends on a read-then-write sequence.
type Store interface {
	CreateSubject(ctx context.Context, sub *Subject) error
	ListSubjects(ctx context.Context) ([]Subject, error)
	TouchSubject(ctx context.Context, subjectID string, checkedAt time.Time) error
	InsertAlertIfAbsent(ctx context.Context, alert *Alert) (inserted bool, err error)
	ListAlertsBySubject(ctx context.Context, subjectID string) ([]Alert, error)
}
