package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breachwatch/internal/breach"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu        sync.Mutex
	subjects  map[string]*Subject
	alerts    []*Alert
	seen      map[string]struct{}
	touched   map[string]time.Time
	insertErr error
	listErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		subjects: make(map[string]*Subject),
		seen:     make(map[string]struct{}),
		touched:  make(map[string]time.Time),
	}
}

func (m *mockStore) addSubject(sub *Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[sub.ID] = sub
}

func (m *mockStore) CreateSubject(_ context.Context, sub *Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[sub.ID]; ok {
		return errors.New("subject already exists")
	}
	cp := *sub
	m.subjects[sub.ID] = &cp
	return nil
}

func (m *mockStore) ListSubjects(_ context.Context) ([]Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Subject, 0, len(m.subjects))
	for _, sub := range m.subjects {
		out = append(out, *sub)
	}
	return out, nil
}

func (m *mockStore) TouchSubject(_ context.Context, subjectID string, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[subjectID] = checkedAt
	return nil
}

func (m *mockStore) InsertAlertIfAbsent(_ context.Context, alert *Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	key := alert.SubjectID + "\x00" + alert.Fingerprint
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	cp := *alert
	m.seen[key] = struct{}{}
	m.alerts = append(m.alerts, &cp)
	return true, nil
}

func (m *mockStore) ListAlertsBySubject(_ context.Context, subjectID string) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Alert
	for _, a := range m.alerts {
		if a.SubjectID == subjectID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockStore) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func (m *mockStore) wasTouched(subjectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.touched[subjectID]
	return ok
}

// mockProvider returns canned results per subject value.
type mockProvider struct {
	mu      sync.Mutex
	results map[string]*breach.LookupResult
	errs    map[string]error
	calls   int
}

func (p *mockProvider) Lookup(_ context.Context, value string) (*breach.LookupResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err, ok := p.errs[value]; ok {
		return nil, err
	}
	if r, ok := p.results[value]; ok {
		return r, nil
	}
	return &breach.LookupResult{Success: true}, nil
}

// mockNotifier records notices and optionally fails.
type mockNotifier struct {
	mu      sync.Mutex
	notices []*Notice
	err     error
}

func (n *mockNotifier) BreachDetected(_ context.Context, notice *Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

func (n *mockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

func breachXResult() *breach.LookupResult {
	return &breach.LookupResult{
		Success: true,
		Found:   2,
		Sources: []breach.SourceMeta{{Name: "BreachX", Date: "2021-01-01"}},
		SourcesData: map[string][]json.RawMessage{
			"BreachX": {json.RawMessage(`{"line":"user:pass123"}`)},
		},
	}
}

func TestScanAll_NoProvider(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), nil, nil, log.Nop(), nil)
	if _, err := svc.ScanAll(context.Background()); err == nil {
		t.Fatal("expected error without a configured provider")
	}
}

func TestScanAll_BreachXScenario(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.addSubject(&Subject{ID: "s-1", UserID: "u-1", Value: "x@example.com", Type: SubjectEmail})
	provider := &mockProvider{results: map[string]*breach.LookupResult{"x@example.com": breachXResult()}}
	notifier := &mockNotifier{}

	svc := NewService(store, provider, notifier, log.Nop(), nil)

	sum, err := svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if sum.Checked != 1 {
		t.Errorf("Checked = %d, want 1", sum.Checked)
	}
	if sum.NewAlerts != 1 {
		t.Errorf("NewAlerts = %d, want 1", sum.NewAlerts)
	}

	alerts, err := svc.Alerts(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Source != "BreachX" {
		t.Errorf("Source = %q, want %q", a.Source, "BreachX")
	}
	if a.SourceDate != "2021-01-01" {
		t.Errorf("SourceDate = %q, want %q", a.SourceDate, "2021-01-01")
	}
	if a.Payload != "user:pass123" {
		t.Errorf("Payload = %q, want %q", a.Payload, "user:pass123")
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
	if !store.wasTouched("s-1") {
		t.Error("last-checked should advance after a definitive answer")
	}
}

func TestScanAll_SecondSweepIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.addSubject(&Subject{ID: "s-1", UserID: "u-1", Value: "x@example.com", Type: SubjectEmail})
	provider := &mockProvider{results: map[string]*breach.LookupResult{"x@example.com": breachXResult()}}
	notifier := &mockNotifier{}

	svc := NewService(store, provider, notifier, log.Nop(), nil)

	if _, err := svc.ScanAll(context.Background()); err != nil {
		t.Fatalf("first ScanAll: %v", err)
	}
	sum, err := svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("second ScanAll: %v", err)
	}
	if sum.NewAlerts != 0 {
		t.Errorf("second sweep NewAlerts = %d, want 0", sum.NewAlerts)
	}
	if store.alertCount() != 1 {
		t.Errorf("alert rows = %d, want 1", store.alertCount())
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestScanAll_DedupGranularity(t *testing.T) {
	t.Parallel()

	// Two records with the same canonical line but different volatile
	// metadata are one fact.
	res := &breach.LookupResult{
		Success: true,
		Found:   2,
		Sources: []breach.SourceMeta{{Name: "BreachX"}},
		SourcesData: map[string][]json.RawMessage{
			"BreachX": {
				json.RawMessage(`{"line":"user:pass123","fetched_at":"2024-01-01"}`),
				json.RawMessage(`{"line":"user:pass123","fetched_at":"2024-06-30"}`),
			},
		},
	}

	store := newMockStore()
	store.addSubject(&Subject{ID: "s-1", UserID: "u-1", Value: "x@example.com", Type: SubjectEmail})
	provider := &mockProvider{results: map[string]*breach.LookupResult{"x@example.com": res}}
	notifier := &mockNotifier{}

	svc := NewService(store, provider, notifier, log.Nop(), nil)

	sum, err := svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if sum.NewAlerts != 1 {
		t.Errorf("NewAlerts = %d, want 1", sum.NewAlerts)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestScanAll_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.addSubject(&Subject{ID: "s-1", UserID: "u-1", Value: "a@example.com", Type: SubjectEmail})
	store.addSubject(&Subject{ID: "s-2", UserID: "u-1", Value: "b@example.com", Type: SubjectEmail})
	store.addSubject(&Subject{ID: "s-3", UserID: "u-1", Value: "c@example.com", Type: SubjectEmail})

	provider := &mockProvider{
		results: map[string]*breach.LookupResult{
			"a@example.com": breachXResult(),
			"c@example.com": breachXResult(),
		},
		errs: map[string]error{"b@example.com": errors.New("provider timeout")},
	}

	svc := NewService(store, provider, &mockNotifier{}, log.Nop(), nil)

	sum, err := svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if sum.Checked != 2 {
		t.Errorf("Checked = %d, want 2", sum.Checked)
	}
	if sum.NewAlerts != 2 {
		t.Errorf("NewAlerts = %d, want 2", sum.NewAlerts)
	}
	if !store.wasTouched("s-1") || !store.wasTouched("s-3") {
		t.Error("healthy subjects should have last-checked advanced")
	}
	if store.wasTouched("s-2") {
		t.Error("failed subject must keep its last-checked for retry")
	}
}

func TestScanAll_ProviderDeclinedSkipsTouch(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.addSubject(&Subject{ID: "s-1", UserID: "u-1", Value: "x@example.com", Type: SubjectEmail})
	provider := &mockProvider{
		results: map[string]*breach.LookupResult{
			"x@example.com": {Success: false, Error: "quota exceeded"},
		},
	}

	svc := NewService(store, provider, nil, log.Nop(), nil)

	sum, err := svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if sum.Checked != 0 {
		t.Errorf("Checked = %d, want 0", sum.Checked)
	}
	if store.wasTouched("s-1") {
		t.Error("declined lookup must not advance last-checked")
	}
}

func TestScanAll_NotificationFailureKeepsAlert(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.addSubject(&Subject{ID: "s-1", UserID: "u-1", Value: "x@example.com", Type: SubjectEmail})
	provider := &mockProvider{results: map[string]*breach.LookupResult{"x@example.com": breachXResult()}}
	notifier := &mockNotifier{err: errors.New("relay down")}

	svc := NewService(store, provider, notifier, log.Nop(), nil)

	sum, err := svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if sum.NewAlerts != 1 {
		t.Errorf("NewAlerts = %d, want 1", sum.NewAlerts)
	}
	if store.alertCount() != 1 {
		t.Error("alert must be kept even when the notification fails")
	}
}

func TestScanAll_InsertErrorContinuesSweep(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.addSubject(&Subject{ID: "s-1", UserID: "u-1", Value: "x@example.com", Type: SubjectEmail})
	store.insertErr = errors.New("constraint violation")
	provider := &mockProvider{results: map[string]*breach.LookupResult{"x@example.com": breachXResult()}}

	svc := NewService(store, provider, nil, log.Nop(), nil)

	sum, err := svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if sum.NewAlerts != 0 {
		t.Errorf("NewAlerts = %d, want 0", sum.NewAlerts)
	}
	if sum.Checked != 1 {
		t.Errorf("Checked = %d, want 1 (insert failures do not block the touch)", sum.Checked)
	}
}

func TestAddSubject(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, &mockProvider{}, nil, log.Nop(), nil)

	sub, err := svc.AddSubject(context.Background(), "u-1", "x@example.com", SubjectEmail)
	if err != nil {
		t.Fatalf("AddSubject: %v", err)
	}
	if sub.ID == "" {
		t.Error("expected generated subject id")
	}

	subjects, err := store.ListSubjects(context.Background())
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(subjects) != 1 {
		t.Fatalf("subjects = %d, want 1", len(subjects))
	}
	if subjects[0].Value != "x@example.com" {
		t.Errorf("Value = %q, want %q", subjects[0].Value, "x@example.com")
	}
}
