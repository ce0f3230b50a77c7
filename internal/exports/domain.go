package exports

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an export record is unknown or expired.
	ErrNotFound = errors.New("exports: not found")
	// ErrInvalidStatus is returned for a disallowed status transition.
	ErrInvalidStatus = errors.New("exports: invalid status transition")
	// ErrNotReady is returned when downloading an export that has no file yet.
	ErrNotReady = errors.New("exports: not ready")
)

// Status is the lifecycle state of an export.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Request captures what to render.
type Request struct {
	QuotationID   string `json:"quotation_id"`
	OfferID       string `json:"offer_id,omitempty"`
	SelectedNotes []int  `json:"selected_notes,omitempty"`
	Format        string `json:"format"`
}

// Record is a persisted export.
type Record struct {
	ID        string    `json:"id"`
	Request   Request   `json:"request"`
	Status    Status    `json:"status"`
	Filename  string    `json:"filename,omitempty"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// canTransition lists the allowed status moves. A failed export may be
// picked up again by a retry; a pending one fails when it cannot be queued.
func canTransition(from, to Status) bool {
	switch to {
	case StatusProcessing:
		return from == StatusPending || from == StatusFailed
	case StatusReady:
		return from == StatusProcessing
	case StatusFailed:
		return from == StatusProcessing || from == StatusPending
	default:
		return false
	}
}
