package classroom

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("class not found")
	ErrInvalidCode   = core.NewNotFoundError("Invalid class code")
	ErrNotEnrolled   = core.NewNotFoundError("student not enrolled in class")
	ErrAlreadyExists = errors.New("already enrolled")
	ErrCodeTaken     = errors.New("class code already taken")
)

type (
	Repository interface {
		CodeExists(ctx context.Context, code string) (bool, error)
		// CreateClass returns ErrCodeTaken if another class already uses class.Code.
		CreateClass(ctx context.Context, class Class) (Class, error)
		GetClass(ctx context.Context, filter GetFilter) (Class, error)
		QueryClasses(ctx context.Context, filter QueryFilter) ([]Class, error)
		UpdateClass(ctx context.Context, class Class) (Class, error)
		// CreateEnrollment returns ErrAlreadyExists if the student is already enrolled in the class.
		CreateEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, classID, studentID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		DeleteEnrollment(ctx context.Context, classID, studentID string) error
	}

	Service interface {
		Create(ctx context.Context, teacher user.User, nc NewClass) (Class, error)
		Get(ctx context.Context, id string) (Class, error)
		Update(ctx context.Context, teacher user.User, class Class, uc UpdateClass) (Class, error)
		// Join enrolls student in the class having `code`. Joining twice returns the existing Enrollment.
		Join(ctx context.Context, student user.User, code string) (Class, Enrollment, error)
		ListForTeacher(ctx context.Context, teacherID string) ([]Class, error)
		ListForStudents(ctx context.Context, studentIDs ...string) ([]Class, error)
		IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
		StudentIDs(ctx context.Context, classIDs ...string) ([]string, error)
		Roster(ctx context.Context, classID string) ([]user.User, error)
		RemoveStudent(ctx context.Context, teacher user.User, class Class, studentID string) error
		// CheckOwner returns core.ErrPermissionDenied unless usr teaches the class.
		CheckOwner(usr user.User, class Class) error
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		codeLen int
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{repo: repo, usrSvc: usrSvc, codeLen: conf.CodeLength}
}

func (svc *service) Create(ctx context.Context, teacher user.User, nc NewClass) (Class, error) {
	if !teacher.IsTeacher() {
		return Class{}, core.ErrPermissionDenied
	}
	now := time.Now().UTC()
	class := Class{
		Name:        nc.Name,
		Description: nc.Description,
		TeacherID:   teacher.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// a concurrent Create may grab the same free code between the check and the insert
	for attempt := 0; attempt < core.MaxCodeAttempts; attempt++ {
		code, err := core.GenerateUniqueCode(ctx, svc.codeLen, svc.repo.CodeExists)
		if err != nil {
			return Class{}, errors.Wrap(err, "generating class code")
		}
		class.Code = code

		created, err := svc.repo.CreateClass(ctx, class)
		if errors.Cause(err) == ErrCodeTaken {
			continue
		}
		return created, err
	}
	return Class{}, core.ErrCodeGeneration
}

func (svc *service) Get(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, GetFilter{ID: id})
}

func (svc *service) Update(ctx context.Context, teacher user.User, class Class, uc UpdateClass) (Class, error) {
	if err := svc.CheckOwner(teacher, class); err != nil {
		return Class{}, err
	}
	class.Name = uc.Name
	class.Description = uc.Description
	class.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, class)
}

func (svc *service) Join(ctx context.Context, student user.User, code string) (Class, Enrollment, error) {
	if !student.IsStudent() {
		return Class{}, Enrollment{}, core.ErrPermissionDenied
	}
	code = core.CleanCode(code)
	if code == "" {
		return Class{}, Enrollment{}, ErrInvalidCode
	}

	class, err := svc.repo.GetClass(ctx, GetFilter{Code: code})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Class{}, Enrollment{}, ErrInvalidCode
		}
		return Class{}, Enrollment{}, errors.Wrap(err, "finding class by code")
	}

	enrollment, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ClassID:    class.ID,
		StudentID:  student.ID,
		EnrolledAt: time.Now().UTC(),
	})
	if errors.Cause(err) == ErrAlreadyExists {
		enrollment, err = svc.repo.GetEnrollment(ctx, class.ID, student.ID)
	}
	if err != nil {
		return Class{}, Enrollment{}, errors.Wrap(err, "enrolling student")
	}

	// refresh student count
	if class, err = svc.Get(ctx, class.ID); err != nil {
		return Class{}, Enrollment{}, errors.Wrap(err, "refreshing class")
	}
	return class, enrollment, nil
}

func (svc *service) ListForTeacher(ctx context.Context, teacherID string) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, QueryFilter{TeacherID: teacherID})
}

func (svc *service) ListForStudents(ctx context.Context, studentIDs ...string) ([]Class, error) {
	if len(studentIDs) == 0 {
		return []Class{}, nil
	}
	return svc.repo.QueryClasses(ctx, QueryFilter{StudentIDs: studentIDs})
}

func (svc *service) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, classID, studentID); err != nil {
		if errors.Cause(err) == ErrNotEnrolled {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) StudentIDs(ctx context.Context, classIDs ...string) ([]string, error) {
	if len(classIDs) == 0 {
		return []string{}, nil
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{ClassIDs: classIDs})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(enrollments))
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if !seen[e.StudentID] {
			seen[e.StudentID] = true
			ids = append(ids, e.StudentID)
		}
	}
	return ids, nil
}

func (svc *service) Roster(ctx context.Context, classID string) ([]user.User, error) {
	ids, err := svc.StudentIDs(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	students, err := svc.usrSvc.Query(ctx, user.QueryFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	for i := range students {
		students[i] = students[i].Public()
	}
	return students, nil
}

func (svc *service) RemoveStudent(ctx context.Context, teacher user.User, class Class, studentID string) error {
	if err := svc.CheckOwner(teacher, class); err != nil {
		return err
	}
	return svc.repo.DeleteEnrollment(ctx, class.ID, studentID)
}

func (svc *service) CheckOwner(usr user.User, class Class) error {
	if usr.IsTeacher() && usr.ID == class.TeacherID {
		return nil
	}
	return core.ErrPermissionDenied
}
