package livesession

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Session is a live video session held for a class.
type Session struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"class_id"`
	TeacherID string     `json:"teacher_id"`
	Title     string     `json:"title"`
	RoomName  string     `json:"room_name"`
	JoinURL   string     `json:"join_url"`
	StartedAt time.Time  `json:"started_at"` // UTC
	EndedAt   *time.Time `json:"ended_at"`   // UTC
}

func (s Session) Active() bool { return s.EndedAt == nil }

type StartRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Title   string `json:"title" validate:"max=200"`
}

func (sr *StartRequest) Validate(validate *validator.Validate) error {
	sr.ClassID = core.CleanString(sr.ClassID)
	sr.Title = core.CleanString(sr.Title)
	return validate.Struct(sr)
}

type QueryFilter struct {
	ClassIDs   []string
	ActiveOnly bool
}
