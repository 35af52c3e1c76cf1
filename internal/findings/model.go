package findings

import (
	"encoding/json"
)

// AgentTypeWorkOrder tags findings whose result is produced by the external
// long-running work-order pipeline rather than a local agent.
const AgentTypeWorkOrder = "work_order"

// Completion values applied when a work-order finding reaches its terminal
// state.
const (
	CompletedConfidence = 0.95
	StatusVerified      = "verified"
)

// Finding is one unit of investigative output.
type Finding struct {
	ID                 string          `json:"id"`
	InvestigationID    string          `json:"investigation_id"`
	AgentType          string          `json:"agent_type"`
	Payload            json.RawMessage `json:"payload"`
	Confidence         float64         `json:"confidence"`
	VerificationStatus string          `json:"verification_status"`
}

// workOrderPayload is the subset of a pending work-order finding's payload
// the poller cares about. The payload is otherwise opaque.
type workOrderPayload struct {
	Pending     bool            `json:"pending"`
	Status      string          `json:"status"`
	WorkOrderID string          `json:"work_order_id"`
	Persons     json.RawMessage `json:"persons"`
}

func (f *Finding) payload() workOrderPayload {
	var p workOrderPayload
	// A malformed payload decodes to the zero value, which reads as
	// not-pending with no work order id. That is the safe interpretation.
	_ = json.Unmarshal(f.Payload, &p)
	return p
}

// WorkOrderID returns the correlation id of the remote work order this
// finding is waiting on, or "" if the payload carries none.
func (f *Finding) WorkOrderID() string {
	if f.AgentType != AgentTypeWorkOrder {
		return ""
	}
	return f.payload().WorkOrderID
}

// HasReport reports whether the payload already has the terminal shape, i.e.
// a per-person result array. A finding with a report must never be completed
// again.
func (f *Finding) HasReport() bool {
	return f.payload().Persons != nil
}

// AwaitingWorkOrder reports whether this finding is the one a poller should
// track: tagged as a work-order finding, carrying a correlation id, and not
// yet holding the terminal payload shape.
func (f *Finding) AwaitingWorkOrder() bool {
	if f.AgentType != AgentTypeWorkOrder {
		return false
	}
	p := f.payload()
	return p.WorkOrderID != "" && p.Persons == nil
}
