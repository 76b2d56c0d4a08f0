package models

import "time"

// InvitationStatus is the stored lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "PENDING"
	InvitationStatusAccepted InvitationStatus = "ACCEPTED"
	InvitationStatusDeclined InvitationStatus = "DECLINED"
	InvitationStatusExpired  InvitationStatus = "EXPIRED"
)

// Invitation is a time-boxed offer for a candidate to enter a job posting's
// pipeline. Status moves one-way out of PENDING.
type Invitation struct {
	ID           string           `db:"id" json:"id"`
	JobPostingID string           `db:"job_posting_id" json:"job_posting_id"`
	SenderID     string           `db:"sender_id" json:"sender_id"`
	RecipientID  string           `db:"recipient_id" json:"recipient_id"`
	Message      string           `db:"message" json:"message"`
	Status       InvitationStatus `db:"status" json:"status"`
	SentAt       time.Time        `db:"sent_at" json:"sent_at"`
	ExpiresAt    time.Time        `db:"expires_at" json:"expires_at"`
	RespondedAt  *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
}

// EffectiveStatus derives the status as of now. A stored PENDING row whose
// expiry has passed reads as EXPIRED whether or not the sweep rewrote it.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationStatusPending && now.After(i.ExpiresAt) {
		return InvitationStatusExpired
	}
	return i.Status
}

// InvitationDetail enriches an invitation with posting and party names.
type InvitationDetail struct {
	Invitation
	JobPostingTitle string `db:"job_posting_title" json:"job_posting_title"`
	SenderName      string `db:"sender_name" json:"sender_name"`
	RecipientName   string `db:"recipient_name" json:"recipient_name"`
}

// InvitationFilter narrows invitation listings.
type InvitationFilter struct {
	JobPostingID string
	RecipientID  string
	SenderID     string
	Status       InvitationStatus
	Page         int
	PageSize     int
}
