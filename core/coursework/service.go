package coursework

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("assignment not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrAlreadyGraded      = core.NewValidationError(errors.New("assignment already graded"))
	ErrPastDue            = core.NewValidationError(errors.New("assignment overdue"))
	ErrNotSubmitted       = core.NewValidationError(errors.New("submission has not been turned in"))
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, assignment Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetSubmission(ctx context.Context, filter SubmissionFilter) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
		// UpsertSubmission creates or updates the single Submission of a student for an assignment.
		// It returns ErrAlreadyGraded instead of replacing a graded Submission with an ungraded one.
		UpsertSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	// Notifier delivers a direct message to a user.
	Notifier interface {
		Notify(ctx context.Context, senderID, recipientID, title, content string) error
	}

	// RosterSubmission is the Submission (or lack thereof) of an enrolled student.
	RosterSubmission struct {
		Submission
		Student user.User `json:"student"`
	}

	Service interface {
		Create(ctx context.Context, teacher user.User, na NewAssignment) (Assignment, error)
		Get(ctx context.Context, id string) (Assignment, error)
		ListForClass(ctx context.Context, classID string, ordering []core.DBOrdering) ([]Assignment, error)
		ListForTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering) ([]Assignment, error)
		ListForStudent(ctx context.Context, studentID string, ordering []core.DBOrdering) ([]StudentAssignment, error)
		MarkInProgress(ctx context.Context, student user.User, assignmentID string) (Submission, error)
		Submit(ctx context.Context, student user.User, assignmentID string, sr SubmitRequest) (Submission, error)
		ListSubmissions(ctx context.Context, teacher user.User, assignmentID string) ([]RosterSubmission, error)
		ListStudentSubmissions(ctx context.Context, studentIDs ...string) ([]Submission, error)
		Grade(ctx context.Context, teacher user.User, submissionID string, gr GradeRequest) (Submission, error)
	}

	service struct {
		repo     Repository
		classSvc classroom.Service
		notifier Notifier
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, classSvc classroom.Service, notifier Notifier, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(classSvc, "classSvc"),
		vala.IsNotNil(notifier, "notifier"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{repo: repo, classSvc: classSvc, notifier: notifier, logger: logger}
}

func (svc *service) Create(ctx context.Context, teacher user.User, na NewAssignment) (Assignment, error) {
	class, err := svc.classSvc.Get(ctx, na.ClassID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "class not found"})
		}
		return Assignment{}, errors.Wrap(err, "finding class")
	}
	if err = svc.classSvc.CheckOwner(teacher, class); err != nil {
		return Assignment{}, err
	}

	now := NowFunc().UTC()
	return svc.repo.CreateAssignment(ctx, Assignment{
		ClassID:      class.ID,
		TeacherID:    teacher.ID,
		BookID:       na.BookID,
		Title:        na.Title,
		Description:  na.Description,
		Instructions: na.Instructions,
		DueDate:      na.DueDate.UTC(),
		MaxScore:     na.MaxScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) Get(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) ListForClass(ctx context.Context, classID string, ordering []core.DBOrdering) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, AssignmentFilter{ClassIDs: []string{classID}}, ordering)
}

func (svc *service) ListForTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, AssignmentFilter{TeacherID: teacherID}, ordering)
}

func (svc *service) ListForStudent(ctx context.Context, studentID string, ordering []core.DBOrdering) ([]StudentAssignment, error) {
	classes, err := svc.classSvc.ListForStudents(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	if len(classes) == 0 {
		return []StudentAssignment{}, nil
	}
	classIDs := make([]string, 0, len(classes))
	for _, c := range classes {
		classIDs = append(classIDs, c.ID)
	}

	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{ClassIDs: classIDs}, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subsByAssignment := make(map[string]Submission, len(subs))
	for _, sub := range subs {
		subsByAssignment[sub.AssignmentID] = sub
	}

	now := NowFunc()
	views := make([]StudentAssignment, 0, len(assignments))
	for _, a := range assignments {
		view := StudentAssignment{Assignment: a, Status: StatusNotStarted}
		if sub, ok := subsByAssignment[a.ID]; ok {
			sub := sub
			view.Submission = &sub
			view.Status = sub.Status
		}
		view.Overdue = a.Overdue(now) && (view.Status == StatusNotStarted || view.Status == StatusInProgress)
		views = append(views, view)
	}
	return views, nil
}

// enrolledAssignment returns the assignment if student is enrolled in its class.
func (svc *service) enrolledAssignment(ctx context.Context, student user.User, assignmentID string) (Assignment, error) {
	if !student.IsStudent() {
		return Assignment{}, core.ErrPermissionDenied
	}
	assignment, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	enrolled, err := svc.classSvc.IsEnrolled(ctx, assignment.ClassID, student.ID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Assignment{}, ErrNotFound
	}
	return assignment, nil
}

func (svc *service) currentSubmission(ctx context.Context, assignmentID, studentID string) (Submission, bool, error) {
	sub, err := svc.repo.GetSubmission(ctx, SubmissionFilter{AssignmentID: assignmentID, StudentID: studentID})
	if err != nil {
		if errors.Cause(err) == ErrSubmissionNotFound {
			return Submission{AssignmentID: assignmentID, StudentID: studentID, Status: StatusNotStarted}, false, nil
		}
		return Submission{}, false, err
	}
	return sub, true, nil
}

func (svc *service) MarkInProgress(ctx context.Context, student user.User, assignmentID string) (Submission, error) {
	assignment, err := svc.enrolledAssignment(ctx, student, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	sub, found, err := svc.currentSubmission(ctx, assignment.ID, student.ID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if found && sub.Status != StatusNotStarted {
		return sub, nil
	}

	now := NowFunc().UTC()
	sub.Status = StatusInProgress
	if !found {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	return svc.repo.UpsertSubmission(ctx, sub)
}

func (svc *service) Submit(ctx context.Context, student user.User, assignmentID string, sr SubmitRequest) (Submission, error) {
	assignment, err := svc.enrolledAssignment(ctx, student, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	sub, found, err := svc.currentSubmission(ctx, assignment.ID, student.ID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission")
	}
	if sub.Status == StatusGraded {
		return Submission{}, ErrAlreadyGraded
	}

	now := NowFunc().UTC()
	if assignment.Overdue(now) {
		return Submission{}, ErrPastDue
	}

	sub.Content = sr.Content
	sub.Status = StatusSubmitted
	sub.SubmittedAt = &now
	if !found {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	return svc.repo.UpsertSubmission(ctx, sub)
}

// ownedAssignment returns the assignment if teacher teaches its class.
func (svc *service) ownedAssignment(ctx context.Context, teacher user.User, assignmentID string) (Assignment, error) {
	assignment, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	class, err := svc.classSvc.Get(ctx, assignment.ClassID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "finding class")
	}
	if err = svc.classSvc.CheckOwner(teacher, class); err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

func (svc *service) ListSubmissions(ctx context.Context, teacher user.User, assignmentID string) ([]RosterSubmission, error) {
	assignment, err := svc.ownedAssignment(ctx, teacher, assignmentID)
	if err != nil {
		return nil, err
	}
	students, err := svc.classSvc.Roster(ctx, assignment.ClassID)
	if err != nil {
		return nil, errors.Wrap(err, "querying roster")
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentID: assignment.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subsByStudent := make(map[string]Submission, len(subs))
	for _, sub := range subs {
		subsByStudent[sub.StudentID] = sub
	}

	out := make([]RosterSubmission, 0, len(students))
	for _, student := range students {
		sub, ok := subsByStudent[student.ID]
		if !ok {
			sub = Submission{AssignmentID: assignment.ID, StudentID: student.ID, Status: StatusNotStarted}
		}
		out = append(out, RosterSubmission{Submission: sub, Student: student})
	}
	return out, nil
}

func (svc *service) ListStudentSubmissions(ctx context.Context, studentIDs ...string) ([]Submission, error) {
	if len(studentIDs) == 0 {
		return []Submission{}, nil
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentIDs: studentIDs})
}

func (svc *service) Grade(ctx context.Context, teacher user.User, submissionID string, gr GradeRequest) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, SubmissionFilter{ID: submissionID})
	if err != nil {
		return Submission{}, err
	}
	assignment, err := svc.ownedAssignment(ctx, teacher, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if !(sub.Status == StatusSubmitted || sub.Status == StatusGraded) {
		return Submission{}, ErrNotSubmitted
	}
	if *gr.Score > assignment.MaxScore {
		return Submission{}, core.NewValidationError(nil, core.FieldError{
			Field: "score",
			Error: fmt.Sprintf("score must be between 0 and %d", assignment.MaxScore),
		})
	}

	now := NowFunc().UTC()
	score := *gr.Score
	sub.Score = &score
	sub.Feedback = gr.Feedback
	sub.Status = StatusGraded
	sub.GradedAt = &now
	sub.UpdatedAt = now
	if sub, err = svc.repo.UpsertSubmission(ctx, sub); err != nil {
		return Submission{}, errors.Wrap(err, "saving grade")
	}

	msg := fmt.Sprintf("Your work on %s was graded: %d/%d", assignment.Title, score, assignment.MaxScore)
	if gr.Feedback != "" {
		msg += "\n\n" + gr.Feedback
	}
	if err = svc.notifier.Notify(ctx, teacher.ID, sub.StudentID, "Assignment graded", msg); err != nil {
		svc.logger.Error(fmt.Sprintf("notifying graded submission %s: %v", sub.ID, err), err, teacher)
	}
	return sub, nil
}
