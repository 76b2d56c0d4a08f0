package models

import "time"

// StageKind tags a stage's role inside a job posting's pipeline. Terminal
// behavior is decided from this tag, never from the stage's display name.
type StageKind string

const (
	StageKindScreening      StageKind = "SCREENING"
	StageKindInterview      StageKind = "INTERVIEW"
	StageKindAssessment     StageKind = "ASSESSMENT"
	StageKindOffer          StageKind = "OFFER"
	StageKindTerminalAccept StageKind = "TERMINAL_ACCEPT"
	StageKindTerminalReject StageKind = "TERMINAL_REJECT"
)

// Terminal reports whether a process entering a stage of this kind is done.
func (k StageKind) Terminal() bool {
	return k == StageKindTerminalAccept || k == StageKindTerminalReject
}

// Valid reports whether the kind is one of the known tags.
func (k StageKind) Valid() bool {
	switch k {
	case StageKindScreening, StageKindInterview, StageKindAssessment,
		StageKindOffer, StageKindTerminalAccept, StageKindTerminalReject:
		return true
	}
	return false
}

// Stage is one step in a job posting's hiring pipeline.
type Stage struct {
	ID           string    `db:"id" json:"id"`
	JobPostingID string    `db:"job_posting_id" json:"job_posting_id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Kind         StageKind `db:"kind" json:"kind"`
	Ordinal      int       `db:"ordinal" json:"ordinal"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// StageSequence is a job posting's ordered stage list, lowest ordinal first.
type StageSequence []Stage

// First returns the lowest-ordinal active stage, or nil when none exists.
func (s StageSequence) First() *Stage {
	for i := range s {
		if s[i].Active {
			return &s[i]
		}
	}
	return nil
}

// Find returns the stage with the given ID, or nil when absent.
func (s StageSequence) Find(id string) *Stage {
	for i := range s {
		if s[i].ID == id {
			return &s[i]
		}
	}
	return nil
}
