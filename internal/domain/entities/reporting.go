package entities

import (
	"time"
)

// Reporting defaults and bounds
const (
	DefaultTopCodesDays   = 30
	DefaultTopCodesLimit  = 20
	MaxTopCodesLimit      = 100
	DefaultTimelineLimit  = 100
	MaxTimelineLimit      = 500
	DefaultByChapterLimit = 100
)

// TopCodesQuery selects the usage window and bounds of a top-codes report
type TopCodesQuery struct {
	SystemKind string
	Days       int
	Limit      int
}

// CodeUsage is how often a code was used as a primary diagnosis
type CodeUsage struct {
	CodeID     string `json:"code_id"`
	Code       string `json:"code"`
	Display    string `json:"display"`
	SystemKind string `json:"system_kind"`
	Count      int    `json:"count"`
}

// PatientCodeEntry is one diagnosis on a patient's timeline
type PatientCodeEntry struct {
	DiagnosisID string     `json:"diagnosis_id"`
	CodeID      string     `json:"code_id"`
	Code        string     `json:"code"`
	Display     string     `json:"display"`
	SystemKind  string     `json:"system_kind"`
	Status      string     `json:"status"`
	Certainty   string     `json:"certainty"`
	OnsetDate   *time.Time `json:"onset_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CodeStats aggregates catalog counts
type CodeStats struct {
	Total         int `json:"total"`
	Categories    int `json:"categories"`
	SexRestricted int `json:"sex_restricted"`
	Etiology      int `json:"etiology"`
	Manifestation int `json:"manifestation"`
}

// CodeCountKind selects which subset of codes to count
type CodeCountKind int

const (
	CountAllCodes CodeCountKind = iota
	CountCategoryCodes
	CountSexRestrictedCodes
	CountEtiologyCodes
	CountManifestationCodes
)
