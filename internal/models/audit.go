package models

import "time"

// Audit actions recorded by the exam engine.
const (
	AuditActionExamCreate      = "EXAM_CREATE"
	AuditActionExamUpdate      = "EXAM_UPDATE"
	AuditActionExamDelete      = "EXAM_DELETE"
	AuditActionTicketIssue     = "TICKET_ISSUE"
	AuditActionTicketDecide    = "TICKET_DECIDE"
	AuditActionTicketRevoke    = "TICKET_REVOKE"
	AuditActionSeatingGenerate = "SEATING_GENERATE"
	AuditActionSeatingFinalize = "SEATING_FINALIZE"
	AuditActionSeatingDelete   = "SEATING_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
