// Package api exposes the breachwatch HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/breachwatch/internal/findings"
	"github.com/linnemanlabs/breachwatch/internal/scanner"
)

// ScanService defines the scanner operations the API needs.
type ScanService interface {
	ScanAll(ctx context.Context) (*scanner.Summary, error)
	AddSubject(ctx context.Context, userID, value string, typ scanner.SubjectType) (*scanner.Subject, error)
	Alerts(ctx context.Context, subjectID string) ([]scanner.Alert, error)
}

// WatchService defines the poller operations the API needs.
type WatchService interface {
	Sync(ctx context.Context, investigationID string, fs []findings.Finding)
	Stop(investigationID string)
	Active(investigationID string) string
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	scans    ScanService
	watches  WatchService
	findings findings.Store
}

// New creates a new API handler.
func New(logger log.Logger, scans ScanService, watches WatchService, fstore findings.Store) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if scans == nil {
		panic(xerrors.New("scan service is required"))
	}
	if watches == nil {
		panic(xerrors.New("watch service is required"))
	}
	if fstore == nil {
		panic(xerrors.New("findings store is required"))
	}
	return &API{
		logger:   logger,
		scans:    scans,
		watches:  watches,
		findings: fstore,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sweep", a.handleSweep)
		r.Post("/subjects", a.handleCreateSubject)
		r.Get("/subjects/{id}/alerts", a.handleListAlerts)
		r.Post("/investigations/{id}/findings", a.handleCreateFinding)
		r.Get("/investigations/{id}/findings", a.handleListFindings)
		r.Post("/investigations/{id}/watch", a.handleWatch)
		r.Delete("/investigations/{id}/watch", a.handleUnwatch)
	})
}

func (a *API) handleSweep(w http.ResponseWriter, r *http.Request) {
	sum, err := a.scans.ScanAll(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "sweep failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int("breachwatch.sweep.checked", sum.Checked),
		attribute.Int("breachwatch.sweep.new_alerts", sum.NewAlerts),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"checked":    sum.Checked,
		"new_alerts": sum.NewAlerts,
	})
}

type createSubjectRequest struct {
	UserID string `json:"user_id"`
	Value  string `json:"value"`
	Type   string `json:"type"`
}

func (a *API) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if msg := validateSubject(&req); msg != "" {
		http.Error(w, `{"error":"`+msg+`"}`, http.StatusBadRequest)
		return
	}

	sub, err := a.scans.AddSubject(r.Context(), req.UserID, req.Value, scanner.SubjectType(req.Type))
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to create subject")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sub)
}

// validateSubject returns a user-facing message for malformed input, or "".
func validateSubject(req *createSubjectRequest) string {
	if req.UserID == "" || req.Value == "" {
		return "user_id and value are required"
	}
	switch scanner.SubjectType(req.Type) {
	case scanner.SubjectEmail:
		if _, err := mail.ParseAddress(req.Value); err != nil {
			return "value is not a valid email address"
		}
	case scanner.SubjectPhone, scanner.SubjectName:
		if strings.TrimSpace(req.Value) == "" {
			return "value must not be blank"
		}
	default:
		return "type must be one of email, phone, name"
	}
	return ""
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("breachwatch.subject.id", id))

	alerts, err := a.scans.Alerts(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list alerts", "subject_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []scanner.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alerts)
}

func (a *API) handleCreateFinding(w http.ResponseWriter, r *http.Request) {
	investigationID := chi.URLParam(r, "id")

	var f findings.Finding
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if f.AgentType == "" {
		http.Error(w, `{"error":"agent_type is required"}`, http.StatusBadRequest)
		return
	}
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	f.InvestigationID = investigationID

	if err := a.findings.Put(r.Context(), &f); err != nil {
		a.logger.Error(r.Context(), err, "failed to store finding", "investigation_id", investigationID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(&f)
}

func (a *API) handleListFindings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("breachwatch.investigation.id", id))

	fs, err := a.findings.ListByInvestigation(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list findings", "investigation_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if fs == nil {
		fs = []findings.Finding{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(fs)
}

// handleWatch reconciles the poller with the investigation's current
// findings. Repeated calls are safe: polling an already-watched work order
// is a no-op inside the supervisor.
func (a *API) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("breachwatch.investigation.id", id))

	fs, err := a.findings.ListByInvestigation(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list findings", "investigation_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.watches.Sync(r.Context(), id, fs)
	workOrderID := a.watches.Active(id)

	span.SetAttributes(attribute.String("breachwatch.work_order.id", workOrderID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"watching":      workOrderID != "",
		"work_order_id": workOrderID,
	})
}

func (a *API) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a.watches.Stop(id)
	w.WriteHeader(http.StatusNoContent)
}
