package scanner

import "time"

// SubjectType tags what kind of identity fact a subject is.
type SubjectType string

const (
	SubjectEmail SubjectType = "email"
	SubjectPhone SubjectType = "phone"
	SubjectName  SubjectType = "name"
)

// Subject is a tracked identity fact belonging to one owning user.
// The scanner only ever mutates LastCheckedAt.
type Subject struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Value         string      `json:"value"`
	Type          SubjectType `json:"type"`
	LastCheckedAt time.Time   `json:"last_checked_at,omitempty"`
}

// Alert is one detected exposure of a subject in one external source.
// For a given subject no two alerts share a fingerprint; the store's
// conditional insert enforces this.
type Alert struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	UserID      string    `json:"user_id"`
	Source      string    `json:"source"`
	SourceDate  string    `json:"source_date,omitempty"`
	Payload     string    `json:"payload"`
	Fingerprint string    `json:"fingerprint"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary is the aggregate outcome of one sweep.
type Summary struct {
	Checked   int `json:"checked"`
	NewAlerts int `json:"new_alerts"`
}
