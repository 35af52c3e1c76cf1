// Package pgstore provides a PostgreSQL implementation of scanner.Store.
package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/breachwatch/internal/scanner"
)

var tracer = otel.Tracer("github.com/linnemanlabs/breachwatch/internal/scanner/pgstore")

//go:embed schema.sql
var schema string

// Store persists subjects and alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
// The pool stays owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// CreateSubject records a new monitored subject.
func (s *Store) CreateSubject(ctx context.Context, sub *scanner.Subject) error {
	ctx, span := tracer.Start(ctx, "pgstore.CreateSubject", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	var lastChecked *time.Time
	if !sub.LastCheckedAt.IsZero() {
		lastChecked = &sub.LastCheckedAt
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subjects (id, user_id, value, type, last_checked_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.UserID, sub.Value, string(sub.Type), lastChecked,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// ListSubjects returns every monitored subject.
func (s *Store) ListSubjects(ctx context.Context) ([]scanner.Subject, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListSubjects", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, value, type, last_checked_at FROM subjects ORDER BY id`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var out []scanner.Subject
	for rows.Next() {
		var (
			sub         scanner.Subject
			typ         string
			lastChecked *time.Time
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Value, &typ, &lastChecked); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		sub.Type = scanner.SubjectType(typ)
		if lastChecked != nil {
			sub.LastCheckedAt = *lastChecked
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return out, nil
}

// TouchSubject advances a subject's last-checked timestamp.
func (s *Store) TouchSubject(ctx context.Context, subjectID string, checkedAt time.Time) error {
	ctx, span := tracer.Start(ctx, "pgstore.TouchSubject", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE subjects SET last_checked_at = $2 WHERE id = $1`,
		subjectID, checkedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("touch subject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// InsertAlertIfAbsent writes the alert unless the same (subject, fingerprint)
// fact already exists. The conditional insert is the dedup invariant: two
// racing writers cannot both succeed.
func (s *Store) InsertAlertIfAbsent(ctx context.Context, alert *scanner.Alert) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.InsertAlertIfAbsent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, subject_id, user_id, source, source_date, payload, fingerprint, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT ON CONSTRAINT alerts_subject_fingerprint_key DO NOTHING`,
		alert.ID, alert.SubjectID, alert.UserID, alert.Source, alert.SourceDate,
		alert.Payload, alert.Fingerprint, alert.Read, alert.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListAlertsBySubject returns a subject's alerts, newest first.
func (s *Store) ListAlertsBySubject(ctx context.Context, subjectID string) ([]scanner.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListAlertsBySubject", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, user_id, source, source_date, payload, fingerprint, read, created_at
		 FROM alerts WHERE subject_id = $1 ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []scanner.Alert
	for rows.Next() {
		var a scanner.Alert
		if err := rows.Scan(&a.ID, &a.SubjectID, &a.UserID, &a.Source, &a.SourceDate,
			&a.Payload, &a.Fingerprint, &a.Read, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}
