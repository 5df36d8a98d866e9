package domain

import "time"

// EventType identifies a proposal lifecycle event.
type EventType string

const (
	EventProposalSaved         EventType = "saved"
	EventProposalDeleted       EventType = "deleted"
	EventProposalStatusChanged EventType = "status_changed"
)

// ProposalEvent is published after a proposal changes.
type ProposalEvent struct {
	Type       EventType `json:"type"`
	ProposalID string    `json:"proposal_id"`
	UserID     string    `json:"user_id"`
	Status     Status    `json:"status,omitempty"`
	ValorTotal Number    `json:"valor_total,omitempty"`
	At         time.Time `json:"at"`
}
