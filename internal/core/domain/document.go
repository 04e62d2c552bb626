package domain

import "time"

// ReviewStatus represents the review lifecycle state of a submitted document.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusAccepted ReviewStatus = "accepted"
	StatusRejected ReviewStatus = "rejected"
)

// validTransitions defines the allowed review transitions. Accepted and
// rejected are terminal: a correction is a new submission.
var validTransitions = map[ReviewStatus][]ReviewStatus{
	StatusPending: {StatusAccepted, StatusRejected},
}

// ParseReviewStatus returns the status named by s, or false when unknown.
func ParseReviewStatus(s string) (ReviewStatus, bool) {
	switch st := ReviewStatus(s); st {
	case StatusPending, StatusAccepted, StatusRejected:
		return st, true
	}
	return "", false
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Decided reports whether s is a terminal review outcome.
func (s ReviewStatus) Decided() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Document is the metadata record for one uploaded file. The blob itself
// lives in the blob store under StorageKey.
type Document struct {
	ID          string       `json:"id" bson:"_id"`
	OwnerID     string       `json:"owner_id" bson:"owner_id"`
	BatchID     string       `json:"batch_id" bson:"batch_id"`
	Filename    string       `json:"filename" bson:"filename"`
	StorageKey  string       `json:"-" bson:"storage_key"`
	ContentType string       `json:"content_type" bson:"content_type"`
	Size        int64        `json:"size" bson:"size"`
	UploadedAt  time.Time    `json:"uploaded_at" bson:"uploaded_at"`
	Status      ReviewStatus `json:"status" bson:"status"`
	ReviewerID  string       `json:"reviewer_id,omitempty" bson:"reviewer_id,omitempty"`
	ReviewNote  string       `json:"review_note,omitempty" bson:"review_note,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
	// Version increments on every mutation and guards compare-and-swap
	// updates and deletes.
	Version int64 `json:"version" bson:"version"`
}

// OwnedBy reports whether actorID owns the document.
func (d *Document) OwnedBy(actorID string) bool {
	return actorID != "" && d.OwnerID == actorID
}

// ReviewDecision is the input of a staff review of a pending document.
type ReviewDecision struct {
	Status     ReviewStatus
	ReviewerID string
	Note       string
	DecidedAt  time.Time
}
