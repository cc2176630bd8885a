package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/library"
)

var (
	bookColumns = columns(
		"id", "title", "author", "genre", "description", "cover_url", "reading_level",
		"pages", "external_key", "created_by", "created_at",
	)
	progressColumns = columns(
		"p.id", "p.user_id", "p.book_id", "p.status", "p.progress", "p.started_at", "p.completed_at", "p.updated_at",
		`b.id AS "book.id"`, `b.title AS "book.title"`, `b.author AS "book.author"`, `b.genre AS "book.genre"`,
		`b.description AS "book.description"`, `b.cover_url AS "book.cover_url"`,
		`b.reading_level AS "book.reading_level"`, `b.pages AS "book.pages"`,
		`b.external_key AS "book.external_key"`, `b.created_by AS "book.created_by"`,
		`b.created_at AS "book.created_at"`,
	)
)

type bookRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Author       string      `db:"author"`
	Genre        string      `db:"genre"`
	Description  string      `db:"description"`
	CoverURL     string      `db:"cover_url"`
	ReadingLevel string      `db:"reading_level"`
	Pages        int         `db:"pages"`
	ExternalKey  null.String `db:"external_key"`
	CreatedBy    null.String `db:"created_by"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (row bookRow) unboil() library.Book {
	return library.Book{
		ID:           row.ID,
		Title:        row.Title,
		Author:       row.Author,
		Genre:        row.Genre,
		Description:  row.Description,
		CoverURL:     row.CoverURL,
		ReadingLevel: row.ReadingLevel,
		Pages:        row.Pages,
		ExternalKey:  row.ExternalKey.String,
		CreatedBy:    row.CreatedBy.String,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

type progressRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	BookID      string    `db:"book_id"`
	Status      string    `db:"status"`
	Progress    int       `db:"progress"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt null.Time `db:"completed_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Book        bookRow   `db:"book"`
}

func (row progressRow) unboil() library.ReadingProgress {
	book := row.Book.unboil()
	progress := library.ReadingProgress{
		ID:        row.ID,
		UserID:    row.UserID,
		BookID:    row.BookID,
		Book:      &book,
		Status:    row.Status,
		Progress:  row.Progress,
		StartedAt: row.StartedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.CompletedAt.Valid {
		at := row.CompletedAt.Time.UTC()
		progress.CompletedAt = &at
	}
	return progress
}

type libraryRepository struct {
	db *sqlx.DB
}

var _ library.Repository = (*libraryRepository)(nil) // interface compliance check

func NewLibraryRepository(db *sqlx.DB) library.Repository {
	return &libraryRepository{db: db}
}

func (repo libraryRepository) selectProgress() sq.SelectBuilder {
	return psql.Select(progressColumns).From("reading_progress p").Join("books b ON b.id = p.book_id")
}

func (repo libraryRepository) CreateBook(ctx context.Context, book library.Book) (library.Book, error) {
	query := psql.Insert("books").
		Columns("title", "author", "genre", "description", "cover_url", "reading_level",
			"pages", "external_key", "created_by", "created_at").
		Values(book.Title, book.Author, book.Genre, book.Description, book.CoverURL, book.ReadingLevel,
			book.Pages, null.NewString(book.ExternalKey, book.ExternalKey != ""),
			null.NewString(book.CreatedBy, book.CreatedBy != ""), book.CreatedAt.UTC()).
		Suffix("RETURNING id")

	if err := get(ctx, repo.db, &book.ID, query); err != nil {
		if isUniqueViolation(err) && book.ExternalKey != "" {
			return repo.GetBook(ctx, library.BookFilter{ExternalKey: book.ExternalKey})
		}
		return library.Book{}, errors.Wrap(err, "inserting book")
	}
	return book, nil
}

func (repo libraryRepository) GetBook(ctx context.Context, filter library.BookFilter) (library.Book, error) {
	or := sq.Or{}
	if filter.ID != "" && validUUID(filter.ID) {
		or = append(or, sq.Eq{"id": filter.ID})
	}
	if filter.ExternalKey != "" {
		or = append(or, sq.Eq{"external_key": filter.ExternalKey})
	}
	if len(or) == 0 {
		return library.Book{}, library.ErrNotFound
	}

	var row bookRow
	if err := get(ctx, repo.db, &row, psql.Select(bookColumns).From("books").Where(or).Limit(1)); err != nil {
		return library.Book{}, trapNoRowsErr(err, library.ErrNotFound, "finding book")
	}
	return row.unboil(), nil
}

func (repo libraryRepository) QueryBooks(ctx context.Context, search string) ([]library.Book, error) {
	query := psql.Select(bookColumns).From("books").OrderBy("title ASC")
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"author": pattern}})
	}

	var rows []bookRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	books := make([]library.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.unboil())
	}
	return books, nil
}

func (repo libraryRepository) CreateProgress(ctx context.Context, progress library.ReadingProgress) (library.ReadingProgress, error) {
	query := psql.Insert("reading_progress").
		Columns("user_id", "book_id", "status", "progress", "started_at", "completed_at", "updated_at").
		Values(progress.UserID, progress.BookID, progress.Status, progress.Progress,
			progress.StartedAt.UTC(), null.TimeFromPtr(progress.CompletedAt), progress.UpdatedAt.UTC()).
		Suffix("RETURNING id")

	var id string
	if err := get(ctx, repo.db, &id, query); err != nil {
		if isUniqueViolation(err) {
			return library.ReadingProgress{}, library.ErrProgressExists
		}
		return library.ReadingProgress{}, errors.Wrap(err, "inserting reading progress")
	}
	return repo.GetProgress(ctx, library.ProgressFilter{ID: id})
}

func (repo libraryRepository) GetProgress(ctx context.Context, filter library.ProgressFilter) (library.ReadingProgress, error) {
	query := repo.selectProgress()
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return library.ReadingProgress{}, library.ErrProgressNotFound
		}
		query = query.Where(sq.Eq{"p.id": filter.ID})
	case validUUID(filter.UserID) && validUUID(filter.BookID):
		query = query.Where(sq.Eq{"p.user_id": filter.UserID, "p.book_id": filter.BookID})
	default:
		return library.ReadingProgress{}, library.ErrProgressNotFound
	}

	var row progressRow
	if err := get(ctx, repo.db, &row, query); err != nil {
		return library.ReadingProgress{}, trapNoRowsErr(err, library.ErrProgressNotFound, "finding reading progress")
	}
	return row.unboil(), nil
}

func (repo libraryRepository) QueryProgress(ctx context.Context, userIDs ...string) ([]library.ReadingProgress, error) {
	query := repo.selectProgress().
		Where(sq.Eq{"p.user_id": validUUIDs(userIDs)}).
		OrderBy("p.updated_at DESC")

	var rows []progressRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying reading progress")
	}
	progress := make([]library.ReadingProgress, 0, len(rows))
	for _, r := range rows {
		progress = append(progress, r.unboil())
	}
	return progress, nil
}

func (repo libraryRepository) UpdateProgress(ctx context.Context, progress library.ReadingProgress) (library.ReadingProgress, error) {
	if !validUUID(progress.ID) {
		return library.ReadingProgress{}, library.ErrProgressNotFound
	}
	query := psql.Update("reading_progress").
		Set("status", progress.Status).
		Set("progress", progress.Progress).
		Set("completed_at", null.TimeFromPtr(progress.CompletedAt)).
		Set("updated_at", progress.UpdatedAt.UTC()).
		Where(sq.Eq{"id": progress.ID})

	affected, err := exec(ctx, repo.db, query)
	if err != nil {
		return library.ReadingProgress{}, errors.Wrap(err, "updating reading progress")
	}
	if affected == 0 {
		return library.ReadingProgress{}, library.ErrProgressNotFound
	}
	return repo.GetProgress(ctx, library.ProgressFilter{ID: progress.ID})
}

func (repo libraryRepository) DeleteProgress(ctx context.Context, id string) error {
	if !validUUID(id) {
		return library.ErrProgressNotFound
	}
	affected, err := exec(ctx, repo.db, psql.Delete("reading_progress").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting reading progress")
	}
	if affected == 0 {
		return library.ErrProgressNotFound
	}
	return nil
}
