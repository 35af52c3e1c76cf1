package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/breachwatch/internal/breach"
)

// Provider is the external breach-intelligence lookup consumed by the
// scanner.
type Provider interface {
	Lookup(ctx context.Context, value string) (*breach.LookupResult, error)
}

// Notice carries everything the notification sink needs to tell a user
// about one new exposure.
type Notice struct {
	UserID       string
	SubjectValue string
	SubjectType  SubjectType
	Source       string
	SourceDate   string
	Payload      string
}

// Notifier delivers a user-visible breach notice. Failures are the
// notifier's own problem: the scanner logs them and moves on.
type Notifier interface {
	BreachDetected(ctx context.Context, n *Notice) error
}

// Service runs breach sweeps over all monitored subjects.
type Service struct {
	store    Store
	provider Provider
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics
}

// NewService creates a scanner service. notifier and metrics may be nil.
func NewService(store Store, provider Provider, notifier Notifier, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		provider: provider,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// ScanAll sweeps every monitored subject once and returns aggregate counts.
//
// Subjects are processed independently: a failed lookup for one subject is
// logged and skipped, never aborts the sweep. The subject's last-checked
// timestamp advances only when the provider gave a definitive answer, so a
// subject whose lookup failed outright is retried on the next sweep. The
// dedup invariant holds even under overlapping sweeps because alert inserts
// are conditional at the store.
func (s *Service) ScanAll(ctx context.Context) (*Summary, error) {
	if s.provider == nil {
		return nil, errors.New("breach provider is not configured")
	}

	start := time.Now()
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	sum := &Summary{}
	for i := range subjects {
		sub := &subjects[i]
		created, checked := s.scanSubject(ctx, sub)
		if checked {
			sum.Checked++
		}
		sum.NewAlerts += created
	}

	if s.metrics != nil {
		s.metrics.SweepsTotal.Inc()
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		s.metrics.SubjectsChecked.Add(float64(sum.Checked))
		s.metrics.AlertsCreated.Add(float64(sum.NewAlerts))
	}

	s.logger.Info(ctx, "sweep complete",
		"subjects", len(subjects),
		"checked", sum.Checked,
		"new_alerts", sum.NewAlerts,
		"duration", time.Since(start).Seconds(),
	)
	return sum, nil
}

// scanSubject processes one subject and reports how many alerts were created
// and whether the lookup produced a definitive answer.
func (s *Service) scanSubject(ctx context.Context, sub *Subject) (created int, checked bool) {
	L := s.logger.With("subject_id", sub.ID, "subject_type", string(sub.Type))

	res, err := s.provider.Lookup(ctx, sub.Value)
	if err != nil {
		// Call failed outright: no definitive answer, keep last-checked so
		// the next sweep retries.
		L.Error(ctx, err, "breach lookup failed")
		if s.metrics != nil {
			s.metrics.ProviderErrors.Inc()
		}
		return 0, false
	}

	if !res.Success {
		L.Warn(ctx, "provider declined lookup", "provider_error", res.Error)
		if s.metrics != nil {
			s.metrics.ProviderErrors.Inc()
		}
		return 0, false
	}

	if res.Found > 0 {
		created = s.recordMatches(ctx, L, sub, res)
	}

	if err := s.store.TouchSubject(ctx, sub.ID, time.Now()); err != nil {
		L.Error(ctx, err, "failed to advance last-checked")
	}
	return created, true
}

// recordMatches walks every (source, record) pair of a lookup result,
// inserting an alert and firing a notice for each previously-unseen fact.
func (s *Service) recordMatches(ctx context.Context, L log.Logger, sub *Subject, res *breach.LookupResult) int {
	created := 0

	// Drive iteration off sources_data so records survive missing source
	// metadata; sort names for deterministic ordering.
	names := make([]string, 0, len(res.SourcesData))
	for name := range res.SourcesData {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		date := res.SourceDate(name)
		for _, record := range res.SourcesData[name] {
			payload := CanonicalPayload(record)
			if payload == "" {
				continue
			}

			alert := &Alert{
				ID:          ulid.Make().String(),
				SubjectID:   sub.ID,
				UserID:      sub.UserID,
				Source:      name,
				SourceDate:  date,
				Payload:     payload,
				Fingerprint: Fingerprint(name, payload),
				CreatedAt:   time.Now(),
			}

			inserted, err := s.store.InsertAlertIfAbsent(ctx, alert)
			if err != nil {
				L.Error(ctx, err, "alert insert failed", "source", name)
				continue
			}
			if !inserted {
				// Already known, from an earlier sweep or earlier in this one.
				continue
			}

			created++
			s.notify(ctx, L, sub, alert)
		}
	}
	return created
}

// notify fires the best-effort breach notice for a freshly inserted alert.
// The alert is the durable fact; a failed notification never rolls it back.
func (s *Service) notify(ctx context.Context, L log.Logger, sub *Subject, alert *Alert) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.BreachDetected(ctx, &Notice{
		UserID:       sub.UserID,
		SubjectValue: sub.Value,
		SubjectType:  sub.Type,
		Source:       alert.Source,
		SourceDate:   alert.SourceDate,
		Payload:      alert.Payload,
	})
	if err != nil {
		L.Error(ctx, err, "breach notification failed", "alert_id", alert.ID)
		if s.metrics != nil {
			s.metrics.NotifyFailures.Inc()
		}
	}
}

// AddSubject registers a new monitored subject for a user.
func (s *Service) AddSubject(ctx context.Context, userID, value string, typ SubjectType) (*Subject, error) {
	sub := &Subject{
		ID:     ulid.Make().String(),
		UserID: userID,
		Value:  value,
		Type:   typ,
	}
	if err := s.store.CreateSubject(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	s.logger.Info(ctx, "subject registered", "subject_id", sub.ID, "subject_type", string(typ))
	return sub, nil
}

// Alerts returns the recorded alerts for one subject.
func (s *Service) Alerts(ctx context.Context, subjectID string) ([]Alert, error) {
	return s.store.ListAlertsBySubject(ctx, subjectID)
}
