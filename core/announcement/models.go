package announcement

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Message types
const (
	TypeAnnouncement = "announcement"
	TypeNotification = "notification"
)

// Message is either a class wide announcement (ClassID set) or a direct notification (RecipientID set).
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ClassID     string    `json:"class_id,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

func (m Message) IsDirect() bool { return m.RecipientID != "" }

// NewAnnouncement contains information needed to post an announcement to a class.
type NewAnnouncement struct {
	ClassID string `json:"class_id" validate:"required"`
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content" validate:"required,notblank,max=10000"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.ClassID = core.CleanString(na.ClassID)
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
	return validate.Struct(na)
}

// QueryFilter matches messages posted to any of ClassIDs or sent to RecipientID.
type QueryFilter struct {
	ClassIDs    []string
	RecipientID string
	UnreadOnly  bool
}
