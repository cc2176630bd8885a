package coursework

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Submission statuses
const (
	StatusNotStarted = "not-started"
	StatusInProgress = "in-progress"
	StatusSubmitted  = "submitted"
	StatusGraded     = "graded"
)

const DefaultMaxScore = 100

var AssignmentOrderings = []string{"due_date", "created_at", "title"}

type Assignment struct {
	ID           string    `json:"id"`
	ClassID      string    `json:"class_id"`
	TeacherID    string    `json:"teacher_id"`
	BookID       string    `json:"book_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	DueDate      time.Time `json:"due_date"` // UTC
	MaxScore     int       `json:"max_score"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Overdue reports whether `at` is past the assignment's due date.
func (a Assignment) Overdue(at time.Time) bool {
	return at.After(a.DueDate)
}

type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	Content      string     `json:"content"`
	Status       string     `json:"status"`
	Score        *int       `json:"score"`
	Feedback     string     `json:"feedback"`
	SubmittedAt  *time.Time `json:"submitted_at"` // UTC
	GradedAt     *time.Time `json:"graded_at"`    // UTC
	CreatedAt    time.Time  `json:"created_at"`   // UTC
	UpdatedAt    time.Time  `json:"updated_at"`   // UTC
}

// StudentAssignment is an Assignment as seen by one student.
type StudentAssignment struct {
	Assignment
	Status     string      `json:"status"`
	Overdue    bool        `json:"overdue"`
	Submission *Submission `json:"submission"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	ClassID      string    `json:"class_id" validate:"required"`
	BookID       string    `json:"book_id"`
	Title        string    `json:"title" validate:"required,notblank,max=200"`
	Description  string    `json:"description" validate:"max=5000"`
	Instructions string    `json:"instructions" validate:"max=5000"`
	DueDate      time.Time `json:"due_date" validate:"required"`
	MaxScore     int       `json:"max_score" validate:"omitempty,min=1,max=1000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.ClassID = core.CleanString(na.ClassID)
	na.BookID = core.CleanString(na.BookID)
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Instructions = core.CleanString(na.Instructions)
	if na.MaxScore == 0 {
		na.MaxScore = DefaultMaxScore
	}
	return validate.Struct(na)
}

type SubmitRequest struct {
	Content string `json:"content" validate:"required,notblank,max=20000"`
}

func (sr *SubmitRequest) Validate(validate *validator.Validate) error {
	sr.Content = core.CleanString(sr.Content)
	return validate.Struct(sr)
}

type GradeRequest struct {
	Score    *int   `json:"score" validate:"required,min=0"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

func (gr *GradeRequest) Validate(validate *validator.Validate) error {
	gr.Feedback = core.CleanString(gr.Feedback)
	return validate.Struct(gr)
}

type AssignmentFilter struct {
	ClassIDs  []string
	TeacherID string
}

// SubmissionFilter applies AND operation on available fields.
type SubmissionFilter struct {
	ID            string
	AssignmentID  string
	AssignmentIDs []string
	StudentID     string
	StudentIDs    []string
}
