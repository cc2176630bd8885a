package coursework_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

type notification struct {
	senderID, recipientID, title, content string
}

type recordingNotifier struct {
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, senderID, recipientID, title, content string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification{senderID, recipientID, title, content})
	return nil
}

type fixture struct {
	usrRepo   user.Repository
	classRepo classroom.Repository
	notifier  *recordingNotifier
	svc       coursework.Service

	teacher, otherTeacher, kwame, esi, outsider user.User
	class                                       classroom.Class
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	db := inmemdb.NewDB()
	f := &fixture{
		usrRepo:   inmemdb.NewUserRepository(db),
		classRepo: inmemdb.NewClassRepository(db),
		notifier:  new(recordingNotifier),
	}
	usrSvc := user.NewServiceMock(f.usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf)
	classSvc := classroom.NewService(f.classRepo, usrSvc, conf)
	f.svc = coursework.NewService(inmemdb.NewCourseworkRepository(db), classSvc, f.notifier, logger)

	f.teacher = testutil.CreateUser(t, f.usrRepo, "Ama", "ama@skul.test", "", user.RoleTeacher, true)
	f.otherTeacher = testutil.CreateUser(t, f.usrRepo, "Kofi", "kofi@skul.test", "", user.RoleTeacher, true)
	f.kwame = testutil.CreateUser(t, f.usrRepo, "Kwame", "kwame@skul.test", "", user.RoleStudent, true)
	f.esi = testutil.CreateUser(t, f.usrRepo, "Esi", "esi@skul.test", "", user.RoleStudent, true)
	f.outsider = testutil.CreateUser(t, f.usrRepo, "Yaw", "yaw@skul.test", "", user.RoleStudent, true)
	f.class = testutil.CreateClass(t, f.classRepo, f.teacher, "Reading 101", "READ2025")
	testutil.Enroll(t, f.classRepo, f.class, f.kwame, f.esi)
	return f
}

func mockNow(t *testing.T, at time.Time) {
	coursework.NowFunc = func() time.Time { return at }
	t.Cleanup(func() { coursework.NowFunc = time.Now })
}

var (
	monday = time.Date(2025, time.February, 17, 9, 0, 0, 0, time.UTC)
	dueAt  = time.Date(2025, time.March, 1, 23, 59, 0, 0, time.UTC)
)

func (f *fixture) newAssignment(t *testing.T, title string, due time.Time) coursework.Assignment {
	a, err := f.svc.Create(context.Background(), f.teacher, coursework.NewAssignment{
		ClassID:  f.class.ID,
		Title:    title,
		DueDate:  due,
		MaxScore: coursework.DefaultMaxScore,
	})
	require.NoError(t, err)
	return a
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	mockNow(t, monday)
	ctx := context.Background()

	na := coursework.NewAssignment{ClassID: f.class.ID, Title: "Chapter 1", DueDate: dueAt, MaxScore: 50}

	_, err := f.svc.Create(ctx, f.otherTeacher, na)
	assert.Equal(t, core.ErrPermissionDenied, err)

	_, err = f.svc.Create(ctx, f.teacher, coursework.NewAssignment{ClassID: "lol", Title: "Chapter 1", DueDate: dueAt})
	var vErr *core.ValidationError
	if assert.True(t, errors.As(err, &vErr)) {
		assert.Equal(t, []core.FieldError{{Field: "class_id", Error: "class not found"}}, vErr.Fields)
	}

	a, err := f.svc.Create(ctx, f.teacher, na)
	require.NoError(t, err)
	assert.Equal(t, f.teacher.ID, a.TeacherID)
	assert.Equal(t, 50, a.MaxScore)
	assert.True(t, a.CreatedAt.Equal(monday))
}

func TestService_ListForStudent(t *testing.T) {
	f := setup(t)
	mockNow(t, monday)
	ctx := context.Background()

	later := f.newAssignment(t, "Chapter 2", dueAt.AddDate(0, 0, 7))
	sooner := f.newAssignment(t, "Chapter 1", dueAt)

	_, err := f.svc.MarkInProgress(ctx, f.kwame, sooner.ID)
	require.NoError(t, err)

	views, err := f.svc.ListForStudent(ctx, f.kwame.ID, nil)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, sooner.ID, views[0].ID, "due date ascending by default")
	assert.Equal(t, coursework.StatusInProgress, views[0].Status)
	assert.NotNil(t, views[0].Submission)
	assert.Equal(t, later.ID, views[1].ID)
	assert.Equal(t, coursework.StatusNotStarted, views[1].Status)
	assert.Nil(t, views[1].Submission)

	views, err = f.svc.ListForStudent(ctx, f.kwame.ID, core.ParseOrdering("-title", coursework.AssignmentOrderings...))
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Chapter 2", views[0].Title)

	views, err = f.svc.ListForStudent(ctx, f.outsider.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, views)

	// once due, unfinished work is overdue
	mockNow(t, dueAt.Add(time.Hour))
	views, err = f.svc.ListForStudent(ctx, f.kwame.ID, nil)
	require.NoError(t, err)
	assert.True(t, views[0].Overdue)
	assert.False(t, views[1].Overdue)
}

func TestService_SubmitAndGrade(t *testing.T) {
	f := setup(t)
	mockNow(t, monday)
	ctx := context.Background()
	a := f.newAssignment(t, "Chapter 1 summary", dueAt)

	t.Run("only enrolled students", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.outsider, a.ID, coursework.SubmitRequest{Content: "hi"})
		assert.Equal(t, coursework.ErrNotFound, err)
		_, err = f.svc.Submit(ctx, f.teacher, a.ID, coursework.SubmitRequest{Content: "hi"})
		assert.Equal(t, core.ErrPermissionDenied, err)
		_, err = f.svc.MarkInProgress(ctx, f.kwame, "lol")
		assert.Equal(t, coursework.ErrNotFound, err)
	})

	var sub coursework.Submission
	t.Run("progress then submit", func(t *testing.T) {
		inProgress, err := f.svc.MarkInProgress(ctx, f.kwame, a.ID)
		require.NoError(t, err)
		assert.Equal(t, coursework.StatusInProgress, inProgress.Status)

		sub, err = f.svc.Submit(ctx, f.kwame, a.ID, coursework.SubmitRequest{Content: "Anansi learns to share."})
		require.NoError(t, err)
		assert.Equal(t, inProgress.ID, sub.ID)
		assert.Equal(t, coursework.StatusSubmitted, sub.Status)
		if assert.NotNil(t, sub.SubmittedAt) {
			assert.True(t, sub.SubmittedAt.Equal(monday))
		}

		// marking in progress again does not reopen submitted work
		again, err := f.svc.MarkInProgress(ctx, f.kwame, a.ID)
		require.NoError(t, err)
		assert.Equal(t, coursework.StatusSubmitted, again.Status)
	})

	t.Run("roster", func(t *testing.T) {
		_, err := f.svc.ListSubmissions(ctx, f.otherTeacher, a.ID)
		assert.Equal(t, core.ErrPermissionDenied, err)

		roster, err := f.svc.ListSubmissions(ctx, f.teacher, a.ID)
		require.NoError(t, err)
		statuses := make(map[string]string, len(roster))
		for _, r := range roster {
			statuses[r.Student.ID] = r.Status
		}
		assert.Equal(t, map[string]string{
			f.kwame.ID: coursework.StatusSubmitted,
			f.esi.ID:   coursework.StatusNotStarted,
		}, statuses)
	})

	t.Run("grade", func(t *testing.T) {
		score := func(n int) *int { return &n }

		_, err := f.svc.Grade(ctx, f.otherTeacher, sub.ID, coursework.GradeRequest{Score: score(90)})
		assert.Equal(t, core.ErrPermissionDenied, err)

		_, err = f.svc.Grade(ctx, f.teacher, sub.ID, coursework.GradeRequest{Score: score(101)})
		var vErr *core.ValidationError
		if assert.True(t, errors.As(err, &vErr)) {
			assert.Equal(t, "score must be between 0 and 100", vErr.Fields[0].Error)
		}

		graded, err := f.svc.Grade(ctx, f.teacher, sub.ID, coursework.GradeRequest{Score: score(92), Feedback: "Great work"})
		require.NoError(t, err)
		assert.Equal(t, coursework.StatusGraded, graded.Status)
		assert.Equal(t, 92, *graded.Score)
		assert.Equal(t, []notification{{
			senderID:    f.teacher.ID,
			recipientID: f.kwame.ID,
			title:       "Assignment graded",
			content:     "Your work on Chapter 1 summary was graded: 92/100\n\nGreat work",
		}}, f.notifier.sent)

		_, err = f.svc.Submit(ctx, f.kwame, a.ID, coursework.SubmitRequest{Content: "v2"})
		assert.Equal(t, coursework.ErrAlreadyGraded, err)
	})

	t.Run("grading needs a submission", func(t *testing.T) {
		started, err := f.svc.MarkInProgress(ctx, f.esi, a.ID)
		require.NoError(t, err)
		n := 50
		_, err = f.svc.Grade(ctx, f.teacher, started.ID, coursework.GradeRequest{Score: &n})
		assert.Equal(t, coursework.ErrNotSubmitted, err)
	})

	t.Run("late", func(t *testing.T) {
		mockNow(t, dueAt.Add(time.Minute))
		_, err := f.svc.Submit(ctx, f.esi, a.ID, coursework.SubmitRequest{Content: "sorry"})
		assert.Equal(t, coursework.ErrPastDue, err)
	})

	subs, err := f.svc.ListStudentSubmissions(ctx, f.kwame.ID, f.esi.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestService_GradeNotifyFailure(t *testing.T) {
	f := setup(t)
	mockNow(t, monday)
	ctx := context.Background()
	a := f.newAssignment(t, "Chapter 1", dueAt)

	sub, err := f.svc.Submit(ctx, f.kwame, a.ID, coursework.SubmitRequest{Content: "done"})
	require.NoError(t, err)

	f.notifier.err = errors.New("db down")
	n := 80
	graded, err := f.svc.Grade(ctx, f.teacher, sub.ID, coursework.GradeRequest{Score: &n})
	require.NoError(t, err, "a failed notification does not fail grading")
	assert.Equal(t, coursework.StatusGraded, graded.Status)
}

// gradedMeanwhile hides the stored submission from reads, as if a teacher graded it
// after the student's read but before the write.
type gradedMeanwhile struct {
	coursework.Repository
}

func (gradedMeanwhile) GetSubmission(context.Context, coursework.SubmissionFilter) (coursework.Submission, error) {
	return coursework.Submission{}, coursework.ErrSubmissionNotFound
}

func TestService_Submit_gradedConcurrently(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	classRepo := inmemdb.NewClassRepository(db)
	repo := inmemdb.NewCourseworkRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf)
	svc := coursework.NewService(&gradedMeanwhile{repo}, classroom.NewService(classRepo, usrSvc, conf), new(recordingNotifier), logger)

	teacher := testutil.CreateUser(t, usrRepo, "Ama", "ama@skul.test", "", user.RoleTeacher, true)
	kwame := testutil.CreateUser(t, usrRepo, "Kwame", "kwame@skul.test", "", user.RoleStudent, true)
	class := testutil.CreateClass(t, classRepo, teacher, "Reading 101", "READ2025")
	testutil.Enroll(t, classRepo, class, kwame)
	mockNow(t, monday)

	a, err := repo.CreateAssignment(ctx, coursework.Assignment{
		ClassID: class.ID, TeacherID: teacher.ID, Title: "Chapter 1 summary",
		DueDate: dueAt, MaxScore: 100, CreatedAt: monday, UpdatedAt: monday,
	})
	require.NoError(t, err)

	score := 92
	graded, err := repo.UpsertSubmission(ctx, coursework.Submission{
		AssignmentID: a.ID, StudentID: kwame.ID, Content: "v1", Status: coursework.StatusGraded,
		Score: &score, SubmittedAt: &monday, GradedAt: &monday, CreatedAt: monday, UpdatedAt: monday,
	})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, kwame, a.ID, coursework.SubmitRequest{Content: "v2"})
	assert.Equal(t, coursework.ErrAlreadyGraded, err)
	_, err = svc.MarkInProgress(ctx, kwame, a.ID)
	assert.Equal(t, coursework.ErrAlreadyGraded, err)

	got, err := repo.GetSubmission(ctx, coursework.SubmissionFilter{ID: graded.ID})
	if assert.NoError(t, err) {
		assert.Equal(t, coursework.StatusGraded, got.Status)
		assert.Equal(t, "v1", got.Content)
		assert.Equal(t, 92, *got.Score)
	}
}
