package entities

import (
	"time"
)

// Diagnosis statuses and certainties in use. The engine records whatever
// value it is given; these are only the defaults and common values.
const (
	DiagnosisStatusActive    = "ACTIVE"
	DiagnosisStatusResolved  = "RESOLVED"
	DiagnosisStatusCancelled = "CANCELLED"

	DiagnosisCertaintyConfirmed   = "CONFIRMED"
	DiagnosisCertaintyProvisional = "PROVISIONAL"
)

// Default revision reasons
const (
	RevisionReasonCreate = "create"
	RevisionReasonUpdate = "update"
)

// MaxRevisionsListed caps ListDiagnosisRevisions
const MaxRevisionsListed = 50

// Diagnosis links a patient to a primary medical code
type Diagnosis struct {
	ID             string                   `json:"id" db:"id"`
	PatientID      string                   `json:"patient_id" db:"patient_id"`
	ConsultationID *string                  `json:"consultation_id,omitempty" db:"consultation_id"`
	PrimaryCodeID  string                   `json:"primary_code_id" db:"primary_code_id"`
	SecondaryCodes []DiagnosisSecondaryCode `json:"secondary_codes"`
	Notes          string                   `json:"notes,omitempty" db:"notes"`
	OnsetDate      *time.Time               `json:"onset_date,omitempty" db:"onset_date"`
	ResolvedDate   *time.Time               `json:"resolved_date,omitempty" db:"resolved_date"`
	Status         string                   `json:"status" db:"status"`
	Certainty      string                   `json:"certainty" db:"certainty"`
	CreatedAt      time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at" db:"updated_at"`
}

// DiagnosisSecondaryCode is an ordered secondary code link
type DiagnosisSecondaryCode struct {
	DiagnosisID string `json:"diagnosis_id" db:"diagnosis_id"`
	CodeID      string `json:"code_id" db:"code_id"`
	Order       int    `json:"order" db:"position"`
}

// SecondaryCodeIDs returns the secondary code ids in link order
func (d *Diagnosis) SecondaryCodeIDs() []string {
	ids := make([]string, len(d.SecondaryCodes))
	for i, sc := range d.SecondaryCodes {
		ids[i] = sc.CodeID
	}
	return ids
}

// Snapshot captures the revisioned state of the diagnosis
func (d *Diagnosis) Snapshot() DiagnosisSnapshot {
	return DiagnosisSnapshot{
		PrimaryCodeID: d.PrimaryCodeID,
		Status:        d.Status,
		Certainty:     d.Certainty,
		Notes:         d.Notes,
		ResolvedDate:  d.ResolvedDate,
		Secondary:     d.SecondaryCodeIDs(),
	}
}

// DiagnosisSnapshot is the before/after state stored in a revision
type DiagnosisSnapshot struct {
	PrimaryCodeID string     `json:"primary_code_id"`
	Status        string     `json:"status"`
	Certainty     string     `json:"certainty"`
	Notes         string     `json:"notes,omitempty"`
	ResolvedDate  *time.Time `json:"resolved_date,omitempty"`
	Secondary     []string   `json:"secondary"`
}

// DiagnosisRevision is an immutable audit entry
type DiagnosisRevision struct {
	ID              string             `json:"id" db:"id"`
	DiagnosisID     string             `json:"diagnosis_id" db:"diagnosis_id"`
	Previous        *DiagnosisSnapshot `json:"previous" db:"previous"`
	Next            DiagnosisSnapshot  `json:"next" db:"next"`
	ChangedByUserID *string            `json:"changed_by_user_id,omitempty" db:"changed_by_user_id"`
	Reason          string             `json:"reason" db:"reason"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// RecordDiagnosisInput is the payload for recording a new diagnosis
type RecordDiagnosisInput struct {
	PatientID        string     `json:"patient_id"`
	PrimaryCodeID    string     `json:"primary_code_id"`
	ConsultationID   *string    `json:"consultation_id,omitempty"`
	SecondaryCodeIDs []string   `json:"secondary_code_ids,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	OnsetDate        *time.Time `json:"onset_date,omitempty"`
	Certainty        string     `json:"certainty,omitempty"`
	ChangedByUserID  *string    `json:"changed_by_user_id,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// UpdateDiagnosisInput holds the fields of a partial update. Nil fields are
// left unchanged; a non-nil SecondaryCodeIDs (even empty) replaces the list.
type UpdateDiagnosisInput struct {
	Status           *string    `json:"status,omitempty"`
	ResolvedDate     *time.Time `json:"resolved_date,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	Certainty        *string    `json:"certainty,omitempty"`
	SecondaryCodeIDs []string   `json:"secondary_code_ids"`
	ChangedByUserID  *string    `json:"changed_by_user_id,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}
