// Package memstore provides an in-memory implementation of scanner.Store.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/breachwatch/internal/scanner"
)

// Store holds subjects and alerts in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	subjects map[string]*scanner.Subject // subject ID -> subject
	alerts   map[string][]*scanner.Alert // subject ID -> alerts in insert order
	seen     map[string]struct{}         // subject ID + fingerprint -> known
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		subjects: make(map[string]*scanner.Subject),
		alerts:   make(map[string][]*scanner.Alert),
		seen:     make(map[string]struct{}),
	}
}

// CreateSubject records a new monitored subject.
func (s *Store) CreateSubject(_ context.Context, sub *scanner.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[sub.ID]; ok {
		return errors.New("subject already exists")
	}
	cp := *sub
	s.subjects[sub.ID] = &cp
	return nil
}

// ListSubjects returns a copy of every monitored subject.
func (s *Store) ListSubjects(_ context.Context) ([]scanner.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scanner.Subject, 0, len(s.subjects))
	for _, sub := range s.subjects {
		out = append(out, *sub)
	}
	return out, nil
}

// TouchSubject advances a subject's last-checked timestamp.
func (s *Store) TouchSubject(_ context.Context, subjectID string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[subjectID]
	if !ok {
		return errors.New("subject not found")
	}
	sub.LastCheckedAt = checkedAt
	return nil
}

// InsertAlertIfAbsent stores a copy of the alert unless the same
// (subject, fingerprint) fact is already recorded.
func (s *Store) InsertAlertIfAbsent(_ context.Context, alert *scanner.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := alert.SubjectID + "\x00" + alert.Fingerprint
	if _, ok := s.seen[key]; ok {
		return false, nil
	}

	cp := *alert
	s.seen[key] = struct{}{}
	s.alerts[alert.SubjectID] = append(s.alerts[alert.SubjectID], &cp)
	return true, nil
}

// ListAlertsBySubject returns copies of a subject's alerts in insert order.
func (s *Store) ListAlertsBySubject(_ context.Context, subjectID string) ([]scanner.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alerts := s.alerts[subjectID]
	out := make([]scanner.Alert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, *a)
	}
	return out, nil
}
