package models

import "time"

// CompatibilityScore is the cached fit score for one (candidate, job
// posting) pair. At most one row exists per pair; rows are written only by
// the recalculation flow, never hand-edited.
type CompatibilityScore struct {
	ID            string    `db:"id" json:"id"`
	CandidateID   string    `db:"candidate_id" json:"candidate_id"`
	JobPostingID  string    `db:"job_posting_id" json:"job_posting_id"`
	Score         int       `db:"score" json:"score"`
	Justification string    `db:"justification" json:"justification"`
	ComputedAt    time.Time `db:"computed_at" json:"computed_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
