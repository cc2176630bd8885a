package livesession_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/livesession"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

type recordingAnnouncer struct {
	posted []announcement.NewAnnouncement
	err    error
}

func (a *recordingAnnouncer) Announce(_ context.Context, _ user.User, na announcement.NewAnnouncement) (announcement.Message, error) {
	if a.err != nil {
		return announcement.Message{}, a.err
	}
	a.posted = append(a.posted, na)
	return announcement.Message{ClassID: na.ClassID, Title: na.Title, Content: na.Content}, nil
}

type fixture struct {
	announcer *recordingAnnouncer
	svc       livesession.Service

	teacher, otherTeacher user.User
	class, otherClass     classroom.Class
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf)
	classSvc := classroom.NewService(classRepo, usrSvc, conf)

	f := &fixture{announcer: new(recordingAnnouncer)}
	f.svc = livesession.NewService(inmemdb.NewSessionRepository(db), classSvc, f.announcer, conf, logger)

	f.teacher = testutil.CreateUser(t, usrRepo, "Ama", "ama@skul.test", "", user.RoleTeacher, true)
	f.otherTeacher = testutil.CreateUser(t, usrRepo, "Kofi", "kofi@skul.test", "", user.RoleTeacher, true)
	f.class = testutil.CreateClass(t, classRepo, f.teacher, "Reading 101", "READ2025")
	f.otherClass = testutil.CreateClass(t, classRepo, f.otherTeacher, "Maths", "MATH2025")
	return f
}

var roomRegex = regexp.MustCompile(`^darasa-read2025-[0-9a-f]{8}$`)

func TestService_Start(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.otherTeacher, livesession.StartRequest{ClassID: f.class.ID})
	assert.Equal(t, core.ErrPermissionDenied, err)

	_, err = f.svc.Start(ctx, f.teacher, livesession.StartRequest{ClassID: "missing"})
	var vErr *core.ValidationError
	if assert.True(t, errors.As(err, &vErr)) {
		assert.Equal(t, []core.FieldError{{Field: "class_id", Error: "class not found"}}, vErr.Fields)
	}

	session, err := f.svc.Start(ctx, f.teacher, livesession.StartRequest{ClassID: f.class.ID})
	require.NoError(t, err)
	assert.Regexp(t, roomRegex, session.RoomName)
	assert.Equal(t, "https://meet.test/"+session.RoomName, session.JoinURL)
	assert.Equal(t, "Reading 101 live session", session.Title)
	assert.Equal(t, f.teacher.ID, session.TeacherID)
	assert.True(t, session.Active())

	if assert.Len(t, f.announcer.posted, 1) {
		posted := f.announcer.posted[0]
		assert.Equal(t, f.class.ID, posted.ClassID)
		assert.Equal(t, "Live session started", posted.Title)
		assert.Contains(t, posted.Content, session.JoinURL)
	}

	again, err := f.svc.Start(ctx, f.teacher, livesession.StartRequest{ClassID: f.class.ID, Title: "Another"})
	if assert.NoError(t, err) {
		assert.Equal(t, session.ID, again.ID)
		assert.Len(t, f.announcer.posted, 1, "no announcement for an already active session")
	}

	f.announcer.err = errors.New("boom")
	other, err := f.svc.Start(ctx, f.otherTeacher, livesession.StartRequest{ClassID: f.otherClass.ID, Title: "Fractions"})
	if assert.NoError(t, err, "announcement failures are only logged") {
		assert.Equal(t, "Fractions", other.Title)
	}

	active, err := f.svc.Active(ctx, f.class.ID, f.otherClass.ID)
	if assert.NoError(t, err) {
		assert.Len(t, active, 2)
	}
	none, err := f.svc.Active(ctx)
	if assert.NoError(t, err) {
		assert.Empty(t, none)
	}
}

func TestService_End(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, f.teacher, livesession.StartRequest{ClassID: f.class.ID})
	require.NoError(t, err)

	_, err = f.svc.End(ctx, f.teacher, "missing")
	assert.Equal(t, livesession.ErrNotFound, err)

	_, err = f.svc.End(ctx, f.otherTeacher, session.ID)
	assert.Equal(t, core.ErrPermissionDenied, err)

	ended, err := f.svc.End(ctx, f.teacher, session.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active())

	again, err := f.svc.End(ctx, f.teacher, session.ID)
	if assert.NoError(t, err) {
		assert.Equal(t, ended.EndedAt, again.EndedAt)
	}

	active, err := f.svc.Active(ctx, f.class.ID)
	if assert.NoError(t, err) {
		assert.Empty(t, active)
	}

	next, err := f.svc.Start(ctx, f.teacher, livesession.StartRequest{ClassID: f.class.ID})
	if assert.NoError(t, err) {
		assert.NotEqual(t, session.ID, next.ID)
		assert.NotEqual(t, session.RoomName, next.RoomName)
	}
}
