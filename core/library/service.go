package library

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("book not found")
	ErrProgressNotFound   = core.NewNotFoundError("reading progress not found")
	ErrProgressExists     = errors.New("book already in library")
	ErrCatalogUnavailable = errors.New("book catalog unavailable")
)

type (
	// Catalog searches an external book catalog.
	Catalog interface {
		Search(ctx context.Context, query string, limit int) ([]CatalogResult, error)
	}

	Repository interface {
		CreateBook(ctx context.Context, book Book) (Book, error)
		GetBook(ctx context.Context, filter BookFilter) (Book, error)
		// QueryBooks does a case-insensitive match of `search` on title and author.
		QueryBooks(ctx context.Context, search string) ([]Book, error)
		// CreateProgress returns ErrProgressExists if the user already has the book in their library.
		CreateProgress(ctx context.Context, progress ReadingProgress) (ReadingProgress, error)
		GetProgress(ctx context.Context, filter ProgressFilter) (ReadingProgress, error)
		QueryProgress(ctx context.Context, userIDs ...string) ([]ReadingProgress, error)
		UpdateProgress(ctx context.Context, progress ReadingProgress) (ReadingProgress, error)
		DeleteProgress(ctx context.Context, id string) error
	}

	Service interface {
		SearchCatalog(ctx context.Context, sr SearchRequest) ([]CatalogResult, error)
		CreateBook(ctx context.Context, usr user.User, nb NewBook) (Book, error)
		GetBook(ctx context.Context, id string) (Book, error)
		ListBooks(ctx context.Context, search string) ([]Book, error)
		AddToLibrary(ctx context.Context, usr user.User, al AddToLibrary) (ReadingProgress, error)
		ListProgress(ctx context.Context, userIDs ...string) ([]ReadingProgress, error)
		UpdateProgress(ctx context.Context, usr user.User, id string, up UpdateProgress) (ReadingProgress, error)
		RemoveFromLibrary(ctx context.Context, usr user.User, id string) error
	}

	service struct {
		repo    Repository
		catalog Catalog
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, catalog Catalog) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(catalog, "catalog"),
	).CheckAndPanic()

	return &service{repo: repo, catalog: catalog}
}

func (svc *service) SearchCatalog(ctx context.Context, sr SearchRequest) ([]CatalogResult, error) {
	results, err := svc.catalog.Search(ctx, sr.Query, sr.Limit)
	if err != nil {
		return nil, errors.Wrap(ErrCatalogUnavailable, err.Error())
	}
	return results, nil
}

func (svc *service) CreateBook(ctx context.Context, usr user.User, nb NewBook) (Book, error) {
	if !usr.IsTeacher() {
		return Book{}, core.ErrPermissionDenied
	}
	return svc.createBook(ctx, usr, nb)
}

func (svc *service) createBook(ctx context.Context, usr user.User, nb NewBook) (Book, error) {
	// catalog books are shared
	if nb.ExternalKey != "" {
		book, err := svc.repo.GetBook(ctx, BookFilter{ExternalKey: nb.ExternalKey})
		if err == nil {
			return book, nil
		} else if errors.Cause(err) != ErrNotFound {
			return Book{}, errors.Wrap(err, "finding book by external key")
		}
	}
	return svc.repo.CreateBook(ctx, Book{
		Title:        nb.Title,
		Author:       nb.Author,
		Genre:        nb.Genre,
		Description:  nb.Description,
		CoverURL:     nb.CoverURL,
		ReadingLevel: nb.ReadingLevel,
		Pages:        nb.Pages,
		ExternalKey:  nb.ExternalKey,
		CreatedBy:    usr.ID,
		CreatedAt:    NowFunc().UTC(),
	})
}

func (svc *service) GetBook(ctx context.Context, id string) (Book, error) {
	return svc.repo.GetBook(ctx, BookFilter{ID: id})
}

func (svc *service) ListBooks(ctx context.Context, search string) ([]Book, error) {
	return svc.repo.QueryBooks(ctx, core.CleanString(search))
}

func (svc *service) AddToLibrary(ctx context.Context, usr user.User, al AddToLibrary) (ReadingProgress, error) {
	var book Book
	var err error
	if al.BookID != "" {
		book, err = svc.GetBook(ctx, al.BookID)
		if err != nil {
			if core.IsNotFound(err) {
				return ReadingProgress{}, core.NewValidationError(nil, core.FieldError{Field: "book_id", Error: "book not found"})
			}
			return ReadingProgress{}, errors.Wrap(err, "finding book")
		}
	} else {
		if book, err = svc.createBook(ctx, usr, *al.Book); err != nil {
			return ReadingProgress{}, errors.Wrap(err, "creating book")
		}
	}

	now := NowFunc().UTC()
	progress := ReadingProgress{
		UserID:    usr.ID,
		BookID:    book.ID,
		Status:    al.Status,
		StartedAt: now,
		UpdatedAt: now,
	}
	applyStatus(&progress, now)

	progress, err = svc.repo.CreateProgress(ctx, progress)
	if errors.Cause(err) == ErrProgressExists {
		progress, err = svc.repo.GetProgress(ctx, ProgressFilter{UserID: usr.ID, BookID: book.ID})
	}
	if err != nil {
		return ReadingProgress{}, errors.Wrap(err, "adding book to library")
	}
	progress.Book = &book
	return progress, nil
}

func (svc *service) ListProgress(ctx context.Context, userIDs ...string) ([]ReadingProgress, error) {
	if len(userIDs) == 0 {
		return []ReadingProgress{}, nil
	}
	return svc.repo.QueryProgress(ctx, userIDs...)
}

// ownProgress returns the reading progress if it belongs to usr.
func (svc *service) ownProgress(ctx context.Context, usr user.User, id string) (ReadingProgress, error) {
	progress, err := svc.repo.GetProgress(ctx, ProgressFilter{ID: id})
	if err != nil {
		return ReadingProgress{}, err
	}
	if progress.UserID != usr.ID {
		return ReadingProgress{}, ErrProgressNotFound
	}
	return progress, nil
}

func (svc *service) UpdateProgress(ctx context.Context, usr user.User, id string, up UpdateProgress) (ReadingProgress, error) {
	progress, err := svc.ownProgress(ctx, usr, id)
	if err != nil {
		return ReadingProgress{}, err
	}

	now := NowFunc().UTC()
	if up.Progress != nil {
		progress.Progress = *up.Progress
		switch {
		case progress.Progress == 100:
			progress.Status = StatusCompleted
		case progress.Progress > 0 && progress.Status != StatusCompleted:
			progress.Status = StatusReading
		}
	}
	if up.Status != "" {
		progress.Status = up.Status
	}
	applyStatus(&progress, now)
	progress.UpdatedAt = now
	return svc.repo.UpdateProgress(ctx, progress)
}

func (svc *service) RemoveFromLibrary(ctx context.Context, usr user.User, id string) error {
	progress, err := svc.ownProgress(ctx, usr, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteProgress(ctx, progress.ID)
}

// applyStatus keeps progress consistent with its status: completed books are at 100%.
func applyStatus(progress *ReadingProgress, now time.Time) {
	if progress.Status == StatusCompleted {
		progress.Progress = 100
		if progress.CompletedAt == nil {
			progress.CompletedAt = &now
		}
		return
	}
	progress.CompletedAt = nil
}
