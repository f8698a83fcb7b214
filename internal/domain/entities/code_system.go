package entities

import (
	"strings"
	"time"
)

// Known code system kinds. The kind column is free text so new standards
// can be registered without a release.
const (
	CodeSystemICD10 = "ICD10"
	CodeSystemICD11 = "ICD11"
	CodeSystemCIAP2 = "CIAP2"
	CodeSystemCBHPM = "CBHPM"
	CodeSystemTUSS  = "TUSS"
)

// CodeSystem represents one coding standard, optionally versioned
type CodeSystem struct {
	ID          string    `json:"id" db:"id"`
	Kind        string    `json:"kind" db:"kind"`
	Name        string    `json:"name" db:"name"`
	Version     *string   `json:"version,omitempty" db:"version"` // nil means unversioned/latest
	Description string    `json:"description,omitempty" db:"description"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeSystemKind is the stored form of a kind: trimmed and upper-cased
func NormalizeSystemKind(kind string) string {
	return strings.ToUpper(strings.TrimSpace(kind))
}

// VersionKey returns the stored form of a version. Unversioned systems are
// stored as the empty string so (kind, version) uniqueness also covers them.
func VersionKey(version *string) string {
	if version == nil {
		return ""
	}
	return *version
}

// VersionFromKey is the inverse of VersionKey
func VersionFromKey(key string) *string {
	if key == "" {
		return nil
	}
	v := key
	return &v
}

// CodeSystemInput carries the fields accepted by an upsert
type CodeSystemInput struct {
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Version     *string `json:"version,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}
