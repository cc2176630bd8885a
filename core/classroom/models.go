package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Code         string    `json:"code"`
	TeacherID    string    `json:"teacher_id"`
	StudentCount int       `json:"student_count"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Enrollment struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"class_id"`
	StudentID  string    `json:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass struct {
	Name        string `json:"name" validate:"max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (uc *UpdateClass) Validate(orig Class, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if desc := core.CleanString(uc.Description); desc != "" {
		uc.Description = desc
	} else {
		uc.Description = orig.Description
	}
	return validate.Struct(uc)
}

type JoinRequest struct {
	Code string `json:"code"`
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	jr.Code = core.CleanCode(jr.Code)
	return validate.Struct(jr)
}

type GetFilter struct {
	ID   string
	Code string
}

// QueryFilter applies AND operation on available fields.
// StudentIDs matches classes that any of the students is enrolled in.
type QueryFilter struct {
	IDs        []string
	TeacherID  string
	StudentIDs []string
}

type EnrollmentFilter struct {
	ClassID    string
	ClassIDs   []string
	StudentID  string
	StudentIDs []string
}
