package dto

// CreateExamRequest schedules an exam in a hall.
type CreateExamRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Course          string `json:"course" validate:"required,max=120"`
	Semester        int    `json:"semester" validate:"omitempty,min=0,max=20"`
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"start_time" validate:"required,len=5"`
	EndTime         string `json:"end_time" validate:"required,len=5"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=1"`
	TotalMarks      int    `json:"total_marks" validate:"required,min=1"`
	Hall            string `json:"hall" validate:"required"`
	Instructions    string `json:"instructions" validate:"omitempty,max=2000"`
	Status          string `json:"status" validate:"omitempty,oneof=upcoming ongoing completed"`
}

// UpdateExamRequest is a partial update; nil fields keep their stored value.
type UpdateExamRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Course          *string `json:"course" validate:"omitempty,min=1,max=120"`
	Semester        *int    `json:"semester" validate:"omitempty,min=0,max=20"`
	Date            *string `json:"date"`
	StartTime       *string `json:"start_time" validate:"omitempty,len=5"`
	EndTime         *string `json:"end_time" validate:"omitempty,len=5"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=1"`
	TotalMarks      *int    `json:"total_marks" validate:"omitempty,min=1"`
	Hall            *string `json:"hall" validate:"omitempty,min=1"`
	Instructions    *string `json:"instructions" validate:"omitempty,max=2000"`
	Status          *string `json:"status" validate:"omitempty,oneof=upcoming ongoing completed"`
}

// ExamQuery carries list filters from the query string.
type ExamQuery struct {
	Semester int    `form:"semester"`
	Status   string `form:"status"`
	Hall     string `form:"hall"`
	Course   string `form:"course"`
	Date     string `form:"date"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
