package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
)

var (
	assignmentColumns = columns(
		"id", "class_id", "teacher_id", "book_id", "title", "description", "instructions",
		"due_date", "max_score", "created_at", "updated_at",
	)
	submissionColumns = columns(
		"id", "assignment_id", "student_id", "content", "status", "score", "feedback",
		"submitted_at", "graded_at", "created_at", "updated_at",
	)

	assignmentOrderColumns = map[string]string{
		"due_date":   "due_date",
		"created_at": "created_at",
		"title":      "title",
	}
)

type assignmentRow struct {
	ID           string      `db:"id"`
	ClassID      string      `db:"class_id"`
	TeacherID    string      `db:"teacher_id"`
	BookID       null.String `db:"book_id"`
	Title        string      `db:"title"`
	Description  string      `db:"description"`
	Instructions string      `db:"instructions"`
	DueDate      time.Time   `db:"due_date"`
	MaxScore     int         `db:"max_score"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (row assignmentRow) unboil() coursework.Assignment {
	return coursework.Assignment{
		ID:           row.ID,
		ClassID:      row.ClassID,
		TeacherID:    row.TeacherID,
		BookID:       row.BookID.String,
		Title:        row.Title,
		Description:  row.Description,
		Instructions: row.Instructions,
		DueDate:      row.DueDate.UTC(),
		MaxScore:     row.MaxScore,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	StudentID    string    `db:"student_id"`
	Content      string    `db:"content"`
	Status       string    `db:"status"`
	Score        null.Int  `db:"score"`
	Feedback     string    `db:"feedback"`
	SubmittedAt  null.Time `db:"submitted_at"`
	GradedAt     null.Time `db:"graded_at"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row submissionRow) unboil() coursework.Submission {
	sub := coursework.Submission{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		StudentID:    row.StudentID,
		Content:      row.Content,
		Status:       row.Status,
		Score:        row.Score.Ptr(),
		Feedback:     row.Feedback,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.SubmittedAt.Valid {
		at := row.SubmittedAt.Time.UTC()
		sub.SubmittedAt = &at
	}
	if row.GradedAt.Valid {
		at := row.GradedAt.Time.UTC()
		sub.GradedAt = &at
	}
	return sub
}

type courseworkRepository struct {
	db *sqlx.DB
}

var _ coursework.Repository = (*courseworkRepository)(nil) // interface compliance check

func NewCourseworkRepository(db *sqlx.DB) coursework.Repository {
	return &courseworkRepository{db: db}
}

func (repo courseworkRepository) CreateAssignment(ctx context.Context, a coursework.Assignment) (coursework.Assignment, error) {
	bookID := null.NewString(a.BookID, a.BookID != "")
	query := psql.Insert("assignments").
		Columns("class_id", "teacher_id", "book_id", "title", "description", "instructions",
			"due_date", "max_score", "created_at", "updated_at").
		Values(a.ClassID, a.TeacherID, bookID, a.Title, a.Description, a.Instructions,
			a.DueDate.UTC(), a.MaxScore, a.CreatedAt.UTC(), a.UpdatedAt.UTC()).
		Suffix("RETURNING id")

	if err := get(ctx, repo.db, &a.ID, query); err != nil {
		return coursework.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo courseworkRepository) GetAssignment(ctx context.Context, id string) (coursework.Assignment, error) {
	if !validUUID(id) {
		return coursework.Assignment{}, coursework.ErrNotFound
	}
	var row assignmentRow
	query := psql.Select(assignmentColumns).From("assignments").Where(sq.Eq{"id": id})
	if err := get(ctx, repo.db, &row, query); err != nil {
		return coursework.Assignment{}, trapNoRowsErr(err, coursework.ErrNotFound, "finding assignment")
	}
	return row.unboil(), nil
}

func (repo courseworkRepository) QueryAssignments(ctx context.Context, filter coursework.AssignmentFilter, ordering []core.DBOrdering) ([]coursework.Assignment, error) {
	query := psql.Select(assignmentColumns).From("assignments").
		OrderBy(orderBy(ordering, assignmentOrderColumns, "due_date ASC")...)
	if filter.ClassIDs != nil {
		query = query.Where(sq.Eq{"class_id": validUUIDs(filter.ClassIDs)})
	}
	if filter.TeacherID != "" {
		query = query.Where(sq.Eq{"teacher_id": validUUIDs([]string{filter.TeacherID})})
	}

	var rows []assignmentRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]coursework.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.unboil())
	}
	return assignments, nil
}

func (repo courseworkRepository) filterSubmissions(query sq.SelectBuilder, filter coursework.SubmissionFilter) sq.SelectBuilder {
	if filter.ID != "" {
		query = query.Where(sq.Eq{"id": validUUIDs([]string{filter.ID})})
	}
	if filter.AssignmentID != "" {
		query = query.Where(sq.Eq{"assignment_id": validUUIDs([]string{filter.AssignmentID})})
	}
	if filter.AssignmentIDs != nil {
		query = query.Where(sq.Eq{"assignment_id": validUUIDs(filter.AssignmentIDs)})
	}
	if filter.StudentID != "" {
		query = query.Where(sq.Eq{"student_id": validUUIDs([]string{filter.StudentID})})
	}
	if filter.StudentIDs != nil {
		query = query.Where(sq.Eq{"student_id": validUUIDs(filter.StudentIDs)})
	}
	return query
}

func (repo courseworkRepository) GetSubmission(ctx context.Context, filter coursework.SubmissionFilter) (coursework.Submission, error) {
	if filter.ID == "" && (filter.AssignmentID == "" || filter.StudentID == "") {
		return coursework.Submission{}, coursework.ErrSubmissionNotFound
	}
	var row submissionRow
	query := repo.filterSubmissions(psql.Select(submissionColumns).From("submissions"), filter).Limit(1)
	if err := get(ctx, repo.db, &row, query); err != nil {
		return coursework.Submission{}, trapNoRowsErr(err, coursework.ErrSubmissionNotFound, "finding submission")
	}
	return row.unboil(), nil
}

func (repo courseworkRepository) QuerySubmissions(ctx context.Context, filter coursework.SubmissionFilter) ([]coursework.Submission, error) {
	query := repo.filterSubmissions(psql.Select(submissionColumns).From("submissions"), filter).
		OrderBy("updated_at DESC")

	var rows []submissionRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]coursework.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.unboil())
	}
	return subs, nil
}

// upsertSubmissionQuery never moves a graded submission back to an ungraded status.
func upsertSubmissionQuery(sub coursework.Submission) sq.InsertBuilder {
	score := null.IntFromPtr(sub.Score)
	submittedAt := null.TimeFromPtr(sub.SubmittedAt)
	gradedAt := null.TimeFromPtr(sub.GradedAt)

	return psql.Insert("submissions").
		Columns("assignment_id", "student_id", "content", "status", "score", "feedback",
			"submitted_at", "graded_at", "created_at", "updated_at").
		Values(sub.AssignmentID, sub.StudentID, sub.Content, sub.Status, score, sub.Feedback,
			submittedAt, gradedAt, sub.CreatedAt.UTC(), sub.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (assignment_id, student_id) DO UPDATE SET
			content = EXCLUDED.content,
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			feedback = EXCLUDED.feedback,
			submitted_at = EXCLUDED.submitted_at,
			graded_at = EXCLUDED.graded_at,
			updated_at = EXCLUDED.updated_at
		WHERE submissions.status <> ? OR EXCLUDED.status = ?
		RETURNING `+submissionColumns, coursework.StatusGraded, coursework.StatusGraded)
}

func (repo courseworkRepository) UpsertSubmission(ctx context.Context, sub coursework.Submission) (coursework.Submission, error) {
	var row submissionRow
	if err := get(ctx, repo.db, &row, upsertSubmissionQuery(sub)); err != nil {
		// the conflicting row was graded: DO UPDATE skipped it
		return coursework.Submission{}, trapNoRowsErr(err, coursework.ErrAlreadyGraded, "upserting submission")
	}
	return row.unboil(), nil
}
