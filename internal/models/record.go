package models

import "time"

// Record is one row of an external collection as returned by a Source.
type Record struct {
	ID           string         `json:"id"`
	Title        string         `json:"title,omitempty"`
	LastEditedAt time.Time      `json:"last_edited_at"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// ChangeType classifies a detected change.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is one detected difference between the snapshot and the source.
type Change struct {
	Type       ChangeType `json:"type"`
	Collection string     `json:"collection"`
	ExternalID string     `json:"external_id"`
	Title      string     `json:"title"`
	LastEdited time.Time  `json:"last_edited,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
}
