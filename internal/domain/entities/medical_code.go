package entities

import (
	"strings"
	"time"
)

// SexRestriction marks a code as applicable to one biological sex only
type SexRestriction string

const (
	SexRestrictionNone   SexRestriction = ""
	SexRestrictionMale   SexRestriction = "M"
	SexRestrictionFemale SexRestriction = "F"
)

// ParseSexRestriction maps the accepted spellings (M/F, male/female,
// masculino/feminino) to a restriction. Anything else is unrestricted.
func ParseSexRestriction(s string) SexRestriction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male", "masculino":
		return SexRestrictionMale
	case "f", "female", "feminino":
		return SexRestrictionFemale
	default:
		return SexRestrictionNone
	}
}

// CrossAsterisk is the dagger/asterisk dual-classification marker
type CrossAsterisk string

const (
	CrossAsteriskNone          CrossAsterisk = ""
	CrossAsteriskEtiology      CrossAsterisk = "ETIOLOGY"
	CrossAsteriskManifestation CrossAsterisk = "MANIFESTATION"
)

// ParseCrossAsterisk normalizes a marker, dropping unknown values
func ParseCrossAsterisk(s string) CrossAsterisk {
	switch CrossAsterisk(strings.ToUpper(strings.TrimSpace(s))) {
	case CrossAsteriskEtiology:
		return CrossAsteriskEtiology
	case CrossAsteriskManifestation:
		return CrossAsteriskManifestation
	default:
		return CrossAsteriskNone
	}
}

// MaxHierarchyDepth bounds the parent chain ascent of a code
const MaxHierarchyDepth = 5

// MedicalCode is one catalog entry within a code system
type MedicalCode struct {
	ID               string         `json:"id" db:"id"`
	SystemID         string         `json:"system_id" db:"system_id"`
	SystemKind       string         `json:"system_kind,omitempty" db:"system_kind"` // joined, read-only
	Code             string         `json:"code" db:"code"`
	Display          string         `json:"display" db:"display"`
	Description      string         `json:"description,omitempty" db:"description"`
	ShortDescription string         `json:"short_description,omitempty" db:"short_description"`
	ParentID         *string        `json:"parent_id,omitempty" db:"parent_id"`
	Synonyms         []string       `json:"synonyms,omitempty" db:"synonyms"`
	SearchableText   string         `json:"-" db:"searchable_text"`
	Chapter          string         `json:"chapter,omitempty" db:"chapter"`
	SexRestriction   SexRestriction `json:"sex_restriction,omitempty" db:"sex_restriction"`
	IsCategory       bool           `json:"is_category" db:"is_category"`
	CrossAsterisk    CrossAsterisk  `json:"cross_asterisk,omitempty" db:"cross_asterisk"`
	Active           bool           `json:"active" db:"active"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// HierarchyNode is one ancestor on a code's path
type HierarchyNode struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// MedicalCodeDetail is a code together with its ancestors, root-most first
type MedicalCodeDetail struct {
	*MedicalCode
	HierarchyPath []HierarchyNode `json:"hierarchy_path"`
}

// CodeImport is one code in a bulk import payload
type CodeImport struct {
	Code             string   `json:"code"`
	Display          string   `json:"display"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	ParentCode       string   `json:"parentCode,omitempty"`
	Synonyms         []string `json:"synonyms,omitempty"`
	Chapter          string   `json:"chapter,omitempty"`
	SexRestriction   string   `json:"sexRestriction,omitempty"`
	IsCategory       bool     `json:"isCategory,omitempty"`
	CrossAsterisk    string   `json:"crossAsterisk,omitempty"`
	Active           *bool    `json:"active,omitempty"`
}

// ImportResult reports how many codes a bulk import touched
type ImportResult struct {
	Imported int `json:"imported"`
	Rebuilt  int `json:"rebuilt,omitempty"`
}

// BulkImportRequest imports codes into an existing code system
type BulkImportRequest struct {
	SystemKind        string       `json:"systemKind"`
	SystemVersion     *string      `json:"systemVersion,omitempty"`
	Codes             []CodeImport `json:"codes"`
	RebuildSearchText bool         `json:"rebuildSearchText,omitempty"`
}
