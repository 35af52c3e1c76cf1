// Package memstore provides an in-memory implementation of findings.Store.
package memstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/linnemanlabs/breachwatch/internal/findings"
)

// Store holds findings in memory. Suitable for dev/testing.
type Store struct {
	mu   sync.RWMutex
	byID map[string]*findings.Finding
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{byID: make(map[string]*findings.Finding)}
}

// Put stores or replaces a finding by id.
func (s *Store) Put(_ context.Context, f *findings.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	cp.Payload = append(json.RawMessage(nil), f.Payload...)
	s.byID[f.ID] = &cp
	return nil
}

// ListByInvestigation returns copies of an investigation's findings.
func (s *Store) ListByInvestigation(_ context.Context, investigationID string) ([]findings.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []findings.Finding
	for _, f := range s.byID {
		if f.InvestigationID != investigationID {
			continue
		}
		cp := *f
		cp.Payload = append(json.RawMessage(nil), f.Payload...)
		out = append(out, cp)
	}
	return out, nil
}

// CompleteWorkOrder replaces a finding's payload with the terminal result,
// unless the stored payload already has the terminal shape. Returns whether
// the write happened.
func (s *Store) CompleteWorkOrder(_ context.Context, findingID string, payload json.RawMessage, confidence float64, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.byID[findingID]
	if !ok {
		return false, nil
	}
	if f.HasReport() {
		return false, nil
	}

	f.Payload = append(json.RawMessage(nil), payload...)
	f.Confidence = confidence
	f.VerificationStatus = status
	return true, nil
}
