package livesession

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("live session not found")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, session Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// QuerySessions returns matching sessions, most recently started first.
		QuerySessions(ctx context.Context, filter QueryFilter) ([]Session, error)
		EndSession(ctx context.Context, id string, at time.Time) (Session, error)
	}

	// Announcer posts class announcements.
	Announcer interface {
		Announce(ctx context.Context, teacher user.User, na announcement.NewAnnouncement) (announcement.Message, error)
	}

	Service interface {
		// Start opens a session for the class, announcing it to the class.
		// An already active session of the class is returned as is.
		Start(ctx context.Context, teacher user.User, sr StartRequest) (Session, error)
		Active(ctx context.Context, classIDs ...string) ([]Session, error)
		End(ctx context.Context, teacher user.User, id string) (Session, error)
	}

	service struct {
		repo      Repository
		classSvc  classroom.Service
		announcer Announcer
		baseURL   string
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, classSvc classroom.Service, announcer Announcer, conf *core.Config, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(classSvc, "classSvc"),
		vala.IsNotNil(announcer, "announcer"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		repo:      repo,
		classSvc:  classSvc,
		announcer: announcer,
		baseURL:   strings.TrimRight(conf.Jitsi.BaseURL, "/"),
		logger:    logger,
	}
}

func roomName(class classroom.Class) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("darasa-%s-%s", strings.ToLower(class.Code), hex.EncodeToString(suffix)), nil
}

func (svc *service) Start(ctx context.Context, teacher user.User, sr StartRequest) (Session, error) {
	class, err := svc.classSvc.Get(ctx, sr.ClassID)
	if err != nil {
		if core.IsNotFound(err) {
			return Session{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class not found"})
		}
		return Session{}, errors.Wrap(err, "finding class")
	}
	if err = svc.classSvc.CheckOwner(teacher, class); err != nil {
		return Session{}, err
	}

	active, err := svc.Active(ctx, class.ID)
	if err != nil {
		return Session{}, errors.Wrap(err, "querying active sessions")
	}
	if len(active) > 0 {
		return active[0], nil
	}

	room, err := roomName(class)
	if err != nil {
		return Session{}, errors.Wrap(err, "generating room name")
	}
	title := sr.Title
	if title == "" {
		title = class.Name + " live session"
	}
	session, err := svc.repo.CreateSession(ctx, Session{
		ClassID:   class.ID,
		TeacherID: teacher.ID,
		Title:     title,
		RoomName:  room,
		JoinURL:   svc.baseURL + "/" + room,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}

	_, err = svc.announcer.Announce(ctx, teacher, announcement.NewAnnouncement{
		ClassID: class.ID,
		Title:   "Live session started",
		Content: fmt.Sprintf("%s has started. Join at %s", title, session.JoinURL),
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("announcing live session %s: %v", session.ID, err), err, teacher)
	}
	return session, nil
}

func (svc *service) Active(ctx context.Context, classIDs ...string) ([]Session, error) {
	if len(classIDs) == 0 {
		return []Session{}, nil
	}
	return svc.repo.QuerySessions(ctx, QueryFilter{ClassIDs: classIDs, ActiveOnly: true})
}

func (svc *service) End(ctx context.Context, teacher user.User, id string) (Session, error) {
	session, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	class, err := svc.classSvc.Get(ctx, session.ClassID)
	if err != nil {
		return Session{}, errors.Wrap(err, "finding class")
	}
	if err = svc.classSvc.CheckOwner(teacher, class); err != nil {
		return Session{}, err
	}
	if !session.Active() {
		return session, nil
	}
	return svc.repo.EndSession(ctx, session.ID, time.Now().UTC())
}
