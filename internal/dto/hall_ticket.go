package dto

// IssueHallTicketRequest issues or re-issues a ticket for one student and exam.
type IssueHallTicketRequest struct {
	StudentID  string  `json:"student_id" validate:"required"`
	ExamID     string  `json:"exam_id" validate:"required"`
	Hall       string  `json:"hall" validate:"required"`
	SeatNumber *string `json:"seat_number" validate:"omitempty,max=16"`
	Notes      *string `json:"notes" validate:"omitempty,max=1000"`
}

// DecideHallTicketRequest approves or rejects a ticket.
type DecideHallTicketRequest struct {
	Status          string `json:"status" validate:"required,oneof=approved rejected"`
	RejectionReason string `json:"rejection_reason" validate:"omitempty,max=500"`
}

// HallTicketQuery filters reviewer listings.
type HallTicketQuery struct {
	Status   string `form:"status"`
	ExamID   string `form:"examId"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
