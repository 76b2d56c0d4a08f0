package models

import (
	"time"

	"github.com/lib/pq"
)

// CandidateProfile holds the candidate data the compatibility scorer reads.
// Updating it raises a candidate_profile_updated outbox event.
type CandidateProfile struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Headline  string         `db:"headline" json:"headline"`
	Summary   string         `db:"summary" json:"summary"`
	Location  string         `db:"location" json:"location"`
	Skills    pq.StringArray `db:"skills" json:"skills"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// SavedPosting marks a posting a candidate bookmarked. Saved postings count
// as relevant for score recalculation.
type SavedPosting struct {
	ID           string    `db:"id" json:"id"`
	CandidateID  string    `db:"candidate_id" json:"candidate_id"`
	JobPostingID string    `db:"job_posting_id" json:"job_posting_id"`
	SavedAt      time.Time `db:"saved_at" json:"saved_at"`
}
