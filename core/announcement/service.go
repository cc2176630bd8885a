package announcement

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("announcement not found")
	ErrNotDirect = core.NewValidationError(errors.New("only direct messages can be marked as read"))
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		// QueryMessages returns matching messages, newest first.
		QueryMessages(ctx context.Context, filter QueryFilter) ([]Message, error)
		MarkRead(ctx context.Context, id string) (Message, error)
	}

	Service interface {
		Announce(ctx context.Context, teacher user.User, na NewAnnouncement) (Message, error)
		Notify(ctx context.Context, senderID, recipientID, title, content string) error
		Get(ctx context.Context, id string) (Message, error)
		// Feed returns the announcements of classIDs along with the direct messages of recipientID.
		Feed(ctx context.Context, recipientID string, classIDs ...string) ([]Message, error)
		ListForClass(ctx context.Context, classID string) ([]Message, error)
		Notifications(ctx context.Context, recipientID string, unreadOnly bool) ([]Message, error)
		MarkRead(ctx context.Context, usr user.User, id string) (Message, error)
	}

	service struct {
		repo     Repository
		classSvc classroom.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, classSvc classroom.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(classSvc, "classSvc"),
	).CheckAndPanic()

	return &service{repo: repo, classSvc: classSvc}
}

func (svc *service) Announce(ctx context.Context, teacher user.User, na NewAnnouncement) (Message, error) {
	class, err := svc.classSvc.Get(ctx, na.ClassID)
	if err != nil {
		if core.IsNotFound(err) {
			return Message{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class not found"})
		}
		return Message{}, errors.Wrap(err, "finding class")
	}
	if err = svc.classSvc.CheckOwner(teacher, class); err != nil {
		return Message{}, err
	}
	return svc.repo.CreateMessage(ctx, Message{
		SenderID:  teacher.ID,
		ClassID:   class.ID,
		Title:     na.Title,
		Content:   na.Content,
		Type:      TypeAnnouncement,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Notify(ctx context.Context, senderID, recipientID, title, content string) error {
	_, err := svc.repo.CreateMessage(ctx, Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Title:       title,
		Content:     content,
		Type:        TypeNotification,
		CreatedAt:   time.Now().UTC(),
	})
	return err
}

func (svc *service) Get(ctx context.Context, id string) (Message, error) {
	return svc.repo.GetMessage(ctx, id)
}

func (svc *service) Feed(ctx context.Context, recipientID string, classIDs ...string) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, QueryFilter{ClassIDs: classIDs, RecipientID: recipientID})
}

func (svc *service) ListForClass(ctx context.Context, classID string) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, QueryFilter{ClassIDs: []string{classID}})
}

func (svc *service) Notifications(ctx context.Context, recipientID string, unreadOnly bool) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, QueryFilter{RecipientID: recipientID, UnreadOnly: unreadOnly})
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, id string) (Message, error) {
	msg, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if !msg.IsDirect() {
		return Message{}, ErrNotDirect
	}
	if msg.RecipientID != usr.ID {
		return Message{}, ErrNotFound
	}
	if msg.Read {
		return msg, nil
	}
	return svc.repo.MarkRead(ctx, msg.ID)
}
