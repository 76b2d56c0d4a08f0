package models

import (
	"time"

	"github.com/lib/pq"
)

// JobPostingStatus is the publication state of a vacancy.
type JobPostingStatus string

const (
	JobPostingStatusDraft     JobPostingStatus = "DRAFT"
	JobPostingStatusPublished JobPostingStatus = "PUBLISHED"
	JobPostingStatusClosed    JobPostingStatus = "CLOSED"
)

// JobPosting is an organization's published vacancy. It owns the stage
// sequence its selection processes run through.
type JobPosting struct {
	ID             string           `db:"id" json:"id"`
	OrganizationID string           `db:"organization_id" json:"organization_id"`
	Title          string           `db:"title" json:"title"`
	Description    string           `db:"description" json:"description"`
	Location       string           `db:"location" json:"location"`
	Requirements   pq.StringArray   `db:"requirements" json:"requirements"`
	Status         JobPostingStatus `db:"status" json:"status"`
	CreatedBy      string           `db:"created_by" json:"created_by"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// JobPostingFilter narrows posting listings.
type JobPostingFilter struct {
	OrganizationID string
	Status         JobPostingStatus
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
