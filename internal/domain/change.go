package domain

import (
	"encoding/json"
	"time"
)

// ChangeType tags a change record with what happened to the posting.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// FieldChange holds the old and new value of a single updated field.
// Description changes are recorded as the opaque marker "(changed)" on
// both sides to bound record size.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangeRecord is one append-only audit entry for a posting. Created
// records carry a full snapshot, updated records a field-level diff,
// removed records neither. Records are never mutated after creation.
type ChangeRecord struct {
	ID        string                 `json:"id"`
	PostingID string                 `json:"postingId"`
	Type      ChangeType             `json:"type"`
	Diff      map[string]FieldChange `json:"diff,omitempty"`
	Snapshot  json.RawMessage        `json:"snapshot,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}
