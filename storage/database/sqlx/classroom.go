package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/classroom"
)

var (
	classColumns = columns(
		"c.id", "c.name", "c.description", "c.code", "c.teacher_id", "c.created_at", "c.updated_at",
		"(SELECT count(*) FROM enrollments e WHERE e.class_id = c.id) AS student_count",
	)
	enrollmentColumns = columns("id", "class_id", "student_id", "enrolled_at")
)

type classRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Description  string    `db:"description"`
	Code         string    `db:"code"`
	TeacherID    string    `db:"teacher_id"`
	StudentCount int       `db:"student_count"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row classRow) unboil() classroom.Class {
	return classroom.Class{
		ID:           row.ID,
		Name:         row.Name,
		Description:  row.Description,
		Code:         row.Code,
		TeacherID:    row.TeacherID,
		StudentCount: row.StudentCount,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type enrollmentRow struct {
	ID         string    `db:"id"`
	ClassID    string    `db:"class_id"`
	StudentID  string    `db:"student_id"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

func (row enrollmentRow) unboil() classroom.Enrollment {
	return classroom.Enrollment{
		ID:         row.ID,
		ClassID:    row.ClassID,
		StudentID:  row.StudentID,
		EnrolledAt: row.EnrolledAt.UTC(),
	}
}

type classRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) classroom.Repository {
	return &classRepository{db: db}
}

func (repo classRepository) selectClasses() sq.SelectBuilder {
	return psql.Select(classColumns).From("classes c")
}

func (repo classRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	found, err := exists(ctx, repo.db, psql.Select("1").From("classes").Where(sq.Eq{"code": code}))
	return found, errors.Wrap(err, "checking class code")
}

func insertClassQuery(class classroom.Class) sq.InsertBuilder {
	return psql.Insert("classes").
		Columns("name", "description", "code", "teacher_id", "created_at", "updated_at").
		Values(class.Name, class.Description, class.Code, class.TeacherID, class.CreatedAt.UTC(), class.UpdatedAt.UTC()).
		Suffix("RETURNING id")
}

func (repo classRepository) CreateClass(ctx context.Context, class classroom.Class) (classroom.Class, error) {
	if err := get(ctx, repo.db, &class.ID, insertClassQuery(class)); err != nil {
		if isUniqueViolation(err) {
			return classroom.Class{}, classroom.ErrCodeTaken
		}
		return classroom.Class{}, errors.Wrap(err, "inserting class")
	}
	class.StudentCount = 0
	return class, nil
}

func (repo classRepository) GetClass(ctx context.Context, filter classroom.GetFilter) (classroom.Class, error) {
	or := sq.Or{}
	if filter.ID != "" && validUUID(filter.ID) {
		or = append(or, sq.Eq{"c.id": filter.ID})
	}
	if filter.Code != "" {
		or = append(or, sq.Eq{"c.code": filter.Code})
	}
	if len(or) == 0 {
		return classroom.Class{}, classroom.ErrNotFound
	}

	var row classRow
	if err := get(ctx, repo.db, &row, repo.selectClasses().Where(or).Limit(1)); err != nil {
		return classroom.Class{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding class")
	}
	return row.unboil(), nil
}

func (repo classRepository) QueryClasses(ctx context.Context, filter classroom.QueryFilter) ([]classroom.Class, error) {
	query := repo.selectClasses().OrderBy("c.created_at DESC")
	if filter.IDs != nil {
		query = query.Where(sq.Eq{"c.id": validUUIDs(filter.IDs)})
	}
	if filter.TeacherID != "" {
		if !validUUID(filter.TeacherID) {
			return []classroom.Class{}, nil
		}
		query = query.Where(sq.Eq{"c.teacher_id": filter.TeacherID})
	}
	if filter.StudentIDs != nil {
		enrolled := psql.Select("e.class_id").From("enrollments e").
			Where(sq.Eq{"e.student_id": validUUIDs(filter.StudentIDs)})
		query = query.Where(sq.Expr("c.id IN (?)", enrolled))
	}

	var rows []classRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]classroom.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.unboil())
	}
	return classes, nil
}

func (repo classRepository) UpdateClass(ctx context.Context, class classroom.Class) (classroom.Class, error) {
	if !validUUID(class.ID) {
		return classroom.Class{}, classroom.ErrNotFound
	}
	query := psql.Update("classes").
		Set("name", class.Name).
		Set("description", class.Description).
		Set("updated_at", class.UpdatedAt.UTC()).
		Where(sq.Eq{"id": class.ID})

	affected, err := exec(ctx, repo.db, query)
	if err != nil {
		return classroom.Class{}, errors.Wrap(err, "updating class")
	}
	if affected == 0 {
		return classroom.Class{}, classroom.ErrNotFound
	}
	return repo.GetClass(ctx, classroom.GetFilter{ID: class.ID})
}

func (repo classRepository) CreateEnrollment(ctx context.Context, enrollment classroom.Enrollment) (classroom.Enrollment, error) {
	query := psql.Insert("enrollments").
		Columns("class_id", "student_id", "enrolled_at").
		Values(enrollment.ClassID, enrollment.StudentID, enrollment.EnrolledAt.UTC()).
		Suffix("RETURNING id")

	if err := get(ctx, repo.db, &enrollment.ID, query); err != nil {
		if isUniqueViolation(err) {
			return classroom.Enrollment{}, classroom.ErrAlreadyExists
		}
		return classroom.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enrollment, nil
}

func (repo classRepository) GetEnrollment(ctx context.Context, classID, studentID string) (classroom.Enrollment, error) {
	if !validUUID(classID) || !validUUID(studentID) {
		return classroom.Enrollment{}, classroom.ErrNotEnrolled
	}
	var row enrollmentRow
	query := psql.Select(enrollmentColumns).From("enrollments").
		Where(sq.Eq{"class_id": classID, "student_id": studentID})
	if err := get(ctx, repo.db, &row, query); err != nil {
		return classroom.Enrollment{}, trapNoRowsErr(err, classroom.ErrNotEnrolled, "finding enrollment")
	}
	return row.unboil(), nil
}

func (repo classRepository) QueryEnrollments(ctx context.Context, filter classroom.EnrollmentFilter) ([]classroom.Enrollment, error) {
	query := psql.Select(enrollmentColumns).From("enrollments").OrderBy("enrolled_at ASC")
	if filter.ClassID != "" {
		query = query.Where(sq.Eq{"class_id": validUUIDs([]string{filter.ClassID})})
	}
	if filter.ClassIDs != nil {
		query = query.Where(sq.Eq{"class_id": validUUIDs(filter.ClassIDs)})
	}
	if filter.StudentID != "" {
		query = query.Where(sq.Eq{"student_id": validUUIDs([]string{filter.StudentID})})
	}
	if filter.StudentIDs != nil {
		query = query.Where(sq.Eq{"student_id": validUUIDs(filter.StudentIDs)})
	}

	var rows []enrollmentRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]classroom.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.unboil())
	}
	return enrollments, nil
}

func (repo classRepository) DeleteEnrollment(ctx context.Context, classID, studentID string) error {
	if !validUUID(classID) || !validUUID(studentID) {
		return classroom.ErrNotEnrolled
	}
	affected, err := exec(ctx, repo.db, psql.Delete("enrollments").
		Where(sq.Eq{"class_id": classID, "student_id": studentID}))
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if affected == 0 {
		return classroom.ErrNotEnrolled
	}
	return nil
}
