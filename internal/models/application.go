package models

import "time"

// ApplicationStatus is the coarse state of a candidacy. Fine-grained
// progress lives on the application's selection process.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted    ApplicationStatus = "SUBMITTED"
	ApplicationStatusInEvaluation ApplicationStatus = "IN_EVALUATION"
	ApplicationStatusWithdrawn    ApplicationStatus = "WITHDRAWN"
)

// Application is a candidate's submission against one job posting. Once
// accepted into evaluation it owns exactly one selection process.
type Application struct {
	ID           string            `db:"id" json:"id"`
	CandidateID  string            `db:"candidate_id" json:"candidate_id"`
	JobPostingID string            `db:"job_posting_id" json:"job_posting_id"`
	CoverLetter  string            `db:"cover_letter" json:"cover_letter"`
	Status       ApplicationStatus `db:"status" json:"status"`
	SubmittedAt  time.Time         `db:"submitted_at" json:"submitted_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail enriches an application with posting and candidate info.
type ApplicationDetail struct {
	Application
	JobPostingTitle string  `db:"job_posting_title" json:"job_posting_title"`
	CandidateName   string  `db:"candidate_name" json:"candidate_name"`
	ProcessID       *string `db:"process_id" json:"process_id,omitempty"`
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	CandidateID  string
	JobPostingID string
	Status       ApplicationStatus
	Page         int
	PageSize     int
}
