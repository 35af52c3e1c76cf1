// Package pgstore provides a PostgreSQL implementation of findings.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/breachwatch/internal/findings"
)

var tracer = otel.Tracer("github.com/linnemanlabs/breachwatch/internal/findings/pgstore")

//go:embed schema.sql
var schema string

// Store persists findings in PostgreSQL.
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

// Put stores or replaces a finding by id.
func (s *Store) Put(ctx context.Context, f *findings.Finding) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	payload := f.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO findings (id, investigation_id, agent_type, payload, confidence, verification_status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		     investigation_id = EXCLUDED.investigation_id,
		     agent_type = EXCLUDED.agent_type,
		     payload = EXCLUDED.payload,
		     confidence = EXCLUDED.confidence,
		     verification_status = EXCLUDED.verification_status`,
		f.ID, f.InvestigationID, f.AgentType, payload, f.Confidence, f.VerificationStatus,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert finding: %w", err)
	}
	return nil
}

// ListByInvestigation returns an investigation's findings.
func (s *Store) ListByInvestigation(ctx context.Context, investigationID string) ([]findings.Finding, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListByInvestigation", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, investigation_id, agent_type, payload, confidence, verification_status
		 FROM findings WHERE investigation_id = $1 ORDER BY id`,
		investigationID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []findings.Finding
	for rows.Next() {
		var f findings.Finding
		if err := rows.Scan(&f.ID, &f.InvestigationID, &f.AgentType, &f.Payload,
			&f.Confidence, &f.VerificationStatus); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return out, nil
}

// CompleteWorkOrder replaces a finding's payload with the terminal result,
// guarded so only the first completion wins. The WHERE clause checks that the
// stored payload does not already carry the terminal 'persons' key, which
// makes the update a compare-and-set.
func (s *Store) CompleteWorkOrder(ctx context.Context, findingID string, payload json.RawMessage, confidence float64, status string) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.CompleteWorkOrder", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE findings
		 SET payload = $2, confidence = $3, verification_status = $4
		 WHERE id = $1 AND NOT (payload ? 'persons')`,
		findingID, payload, confidence, status,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("complete finding: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
