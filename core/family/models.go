package family

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Link ties a parent account to a student account.
type Link struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id"`
	ChildID   string    `json:"child_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type LinkRequest struct {
	StudentCode string `json:"student_code" validate:"required"`
}

func (lr *LinkRequest) Validate(validate *validator.Validate) error {
	lr.StudentCode = core.CleanCode(lr.StudentCode)
	return validate.Struct(lr)
}

type LinkFilter struct {
	ParentID string
	ChildID  string
}
