package models

import "time"

// SelectionProcess tracks where a single application sits in its job
// posting's pipeline. One process exists per application; it is never
// deleted once created.
type SelectionProcess struct {
	ID               string     `db:"id" json:"id"`
	ApplicationID    string     `db:"application_id" json:"application_id"`
	JobPostingID     string     `db:"job_posting_id" json:"job_posting_id"`
	CurrentStageID   string     `db:"current_stage_id" json:"current_stage_id"`
	StartedAt        time.Time  `db:"started_at" json:"started_at"`
	EndedAt          *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	LastTransitionAt time.Time  `db:"last_transition_at" json:"last_transition_at"`
	Version          int        `db:"version" json:"-"`
}

// Finalized reports whether the process has reached a terminal stage.
func (p *SelectionProcess) Finalized() bool {
	return p.EndedAt != nil
}

// StageTransition is one immutable entry of a process's audit ledger.
// FromStageID is nil only for the entry written when the process starts.
type StageTransition struct {
	ID             string    `db:"id" json:"id"`
	ProcessID      string    `db:"process_id" json:"process_id"`
	FromStageID    *string   `db:"from_stage_id" json:"from_stage_id,omitempty"`
	ToStageID      string    `db:"to_stage_id" json:"to_stage_id"`
	ActorID        string    `db:"actor_id" json:"actor_id"`
	Feedback       *string   `db:"feedback" json:"feedback,omitempty"`
	TransitionedAt time.Time `db:"transitioned_at" json:"transitioned_at"`
}

// StageTransitionDetail enriches a ledger entry with display names for
// audit views.
type StageTransitionDetail struct {
	StageTransition
	FromStageName *string `db:"from_stage_name" json:"from_stage_name,omitempty"`
	ToStageName   string  `db:"to_stage_name" json:"to_stage_name"`
	ActorName     string  `db:"actor_name" json:"actor_name"`
}

// SelectionProcessDetail enriches a process with posting and stage context.
type SelectionProcessDetail struct {
	SelectionProcess
	CurrentStageName string    `db:"current_stage_name" json:"current_stage_name"`
	CurrentStageKind StageKind `db:"current_stage_kind" json:"current_stage_kind"`
	JobPostingTitle  string    `db:"job_posting_title" json:"job_posting_title"`
	CandidateID      string    `db:"candidate_id" json:"candidate_id"`
	CandidateName    string    `db:"candidate_name" json:"candidate_name"`
	TransitionCount  int       `db:"-" json:"transition_count"`
}

// SelectionProcessFilter narrows process listings.
type SelectionProcessFilter struct {
	JobPostingID string
	StageID      string
	ActiveOnly   bool
	Page         int
	PageSize     int
}
