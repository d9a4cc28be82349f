package models

import (
	"errors"
	"time"
)

// TicketStatus tracks whether a ticket still admits its holder.
type TicketStatus string

const (
	TicketStatusIssued  TicketStatus = "issued"
	TicketStatusRevoked TicketStatus = "revoked"
)

// ApprovalStatus is the discriminator of a ticket Decision.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// DefaultRejectionReason is stored when a reviewer rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// Decision is the reviewer outcome for a ticket: Pending, Approved{by, at} or Rejected{by, at, reason}.
// Build it through PendingDecision, ApprovedDecision or RejectedDecision.
type Decision struct {
	Status ApprovalStatus `db:"approval_status" json:"status"`
	By     *string        `db:"decided_by" json:"by,omitempty"`
	At     *time.Time     `db:"decided_at" json:"at,omitempty"`
	Reason *string        `db:"rejection_reason" json:"reason,omitempty"`
}

// PendingDecision awaits a reviewer.
func PendingDecision() Decision {
	return Decision{Status: ApprovalPending}
}

// ApprovedDecision records who approved and when.
func ApprovedDecision(by string, at time.Time) Decision {
	return Decision{Status: ApprovalApproved, By: &by, At: &at}
}

// RejectedDecision records who rejected, when and why.
func RejectedDecision(by string, at time.Time, reason string) Decision {
	if reason == "" {
		reason = DefaultRejectionReason
	}
	return Decision{Status: ApprovalRejected, By: &by, At: &at, Reason: &reason}
}

var errMalformedDecision = errors.New("malformed ticket decision")

// Validate rejects shapes the constructors never produce.
func (d Decision) Validate() error {
	switch d.Status {
	case ApprovalPending:
		if d.By != nil || d.At != nil || d.Reason != nil {
			return errMalformedDecision
		}
	case ApprovalApproved:
		if d.By == nil || d.At == nil || d.Reason != nil {
			return errMalformedDecision
		}
	case ApprovalRejected:
		if d.By == nil || d.At == nil || d.Reason == nil {
			return errMalformedDecision
		}
	default:
		return errMalformedDecision
	}
	return nil
}

// Approved reports whether the decision admits the student.
func (d Decision) Approved() bool { return d.Status == ApprovalApproved }

// HallTicket binds one student to one exam.
type HallTicket struct {
	ID         string       `db:"id" json:"id"`
	StudentID  string       `db:"student_id" json:"student_id"`
	ExamID     string       `db:"exam_id" json:"exam_id"`
	Hall       string       `db:"hall" json:"hall"`
	SeatNumber *string      `db:"seat_number" json:"seat_number,omitempty"`
	Status     TicketStatus `db:"status" json:"status"`
	Decision   `json:"decision"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	IssuedBy   string    `db:"issued_by" json:"issued_by"`
	IssuedAt   time.Time `db:"issued_at" json:"issued_at"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// VisibleToStudent is the approval gate for student-facing views.
func (t HallTicket) VisibleToStudent() bool {
	return t.Active && t.Status == TicketStatusIssued && t.Decision.Approved()
}

// HallTicketDetail joins exam and student fields for listings.
type HallTicketDetail struct {
	HallTicket
	ExamTitle   string    `db:"exam_title" json:"exam_title"`
	ExamCourse  string    `db:"exam_course" json:"exam_course"`
	ExamDate    time.Time `db:"exam_date" json:"exam_date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	StudentName string    `db:"student_name" json:"student_name"`
	RollNumber  string    `db:"roll_number" json:"roll_number"`
}

// HallTicketFilter constrains reviewer listings.
type HallTicketFilter struct {
	ApprovalStatus ApprovalStatus
	ExamID         string
	Page           int
	PageSize       int
}

// SeatCandidate is an issued, active ticket resolved against the student directory.
type SeatCandidate struct {
	TicketID   string `db:"ticket_id"`
	StudentID  string `db:"student_id"`
	FullName   string `db:"full_name"`
	RollNumber string `db:"roll_number"`
	Department string `db:"department"`
	Course     string `db:"course"`
	Semester   int    `db:"semester"`
}
