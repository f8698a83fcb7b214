package entities

import (
	"time"

	"github.com/google/uuid"
)

// CatalogEventType represents the kind of catalog change
type CatalogEventType string

const (
	CatalogEventCodesImported     CatalogEventType = "codes_imported"
	CatalogEventSearchTextRebuilt CatalogEventType = "search_text_rebuilt"
)

// CatalogEvent announces a catalog write so that other instances can drop
// their in-process search cache
type CatalogEvent struct {
	ID         string           `json:"id"`
	Type       CatalogEventType `json:"type"`
	SystemID   string           `json:"system_id"`
	SystemKind string           `json:"system_kind"`
	Count      int              `json:"count"`
	Origin     string           `json:"origin"` // instance id of the publisher
	Timestamp  time.Time        `json:"timestamp"`
}

// NewCatalogEvent creates a catalog event stamped with a fresh id
func NewCatalogEvent(eventType CatalogEventType, system *CodeSystem, count int, origin string) *CatalogEvent {
	event := &CatalogEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Count:     count,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
	if system != nil {
		event.SystemID = system.ID
		event.SystemKind = system.Kind
	}
	return event
}
