package model

import (
	"time"

	"github.com/google/uuid"
)

// ReviewState is the per-field review flag, independent of corrections.
type ReviewState string

const (
	ReviewPending     ReviewState = "pending"
	ReviewNeedsReview ReviewState = "needs_review"
	ReviewVerified    ReviewState = "verified"
)

// reviewCycle fixes the order reviewers step through when cycling a field.
var reviewCycle = [...]ReviewState{ReviewPending, ReviewNeedsReview, ReviewVerified}

// Valid reports whether s is one of the three defined review states.
func (s ReviewState) Valid() bool {
	switch s {
	case ReviewPending, ReviewNeedsReview, ReviewVerified:
		return true
	}
	return false
}

// Next returns the state following s in the pending → needs_review →
// verified → pending cycle. Unknown states are treated as pending.
func (s ReviewState) Next() ReviewState {
	for i, st := range reviewCycle {
		if st == s {
			return reviewCycle[(i+1)%len(reviewCycle)]
		}
	}
	return reviewCycle[1]
}

// ReviewStatus is the stored review entry for a field path, with attribution
// for the reviewer who last set it.
type ReviewStatus struct {
	Status     ReviewState `json:"status"`
	ReviewedBy *uuid.UUID  `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time  `json:"reviewed_at,omitempty"`
}
