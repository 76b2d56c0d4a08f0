package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OutboxEventType enumerates events written through the transactional outbox.
type OutboxEventType string

const (
	// OutboxEventCandidateProfileUpdated fires score recalculation for every
	// job posting relevant to the candidate.
	OutboxEventCandidateProfileUpdated OutboxEventType = "candidate_profile_updated"
)

// OutboxEvent is written in the same transaction as the change that raised
// it and consumed by the recalculation dispatcher after commit. Delivery is
// at-least-once; consumers must be idempotent.
type OutboxEvent struct {
	ID          string          `db:"id" json:"id"`
	Type        OutboxEventType `db:"type" json:"type"`
	Payload     OutboxPayload   `db:"payload" json:"payload"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// OutboxPayload carries event data as JSONB.
type OutboxPayload struct {
	CandidateID string `json:"candidateId"`
}

// Value marshals the payload for persistence.
func (p OutboxPayload) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the struct.
func (p *OutboxPayload) Scan(value interface{}) error {
	if value == nil {
		*p = OutboxPayload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for OutboxPayload", value)
	}
	if len(data) == 0 {
		*p = OutboxPayload{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal outbox payload: %w", err)
	}
	return nil
}
