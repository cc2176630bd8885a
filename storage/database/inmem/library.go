package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/darasa/core/library"
)

type libraryRepository struct {
	db *DB
}

func NewLibraryRepository(db *DB) library.Repository {
	return &libraryRepository{db: db}
}

func (repo *libraryRepository) CreateBook(_ context.Context, book library.Book) (library.Book, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	book.ID = newID()
	repo.db.books[book.ID] = &book
	return book, nil
}

func (repo *libraryRepository) GetBook(_ context.Context, filter library.BookFilter) (library.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, b := range repo.db.books {
		if (filter.ID != "" && b.ID == filter.ID) || (filter.ExternalKey != "" && b.ExternalKey == filter.ExternalKey) {
			return *b, nil
		}
	}
	return library.Book{}, library.ErrNotFound
}

func (repo *libraryRepository) QueryBooks(_ context.Context, search string) ([]library.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search = strings.ToLower(search)
	books := make([]library.Book, 0)
	for _, b := range repo.db.books {
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Author), search) {
			continue
		}
		books = append(books, *b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books, nil
}

// withBook must be called with the DB lock held.
func (repo *libraryRepository) withBook(progress library.ReadingProgress) library.ReadingProgress {
	if b, ok := repo.db.books[progress.BookID]; ok {
		book := *b
		progress.Book = &book
	}
	return progress
}

func (repo *libraryRepository) CreateProgress(_ context.Context, progress library.ReadingProgress) (library.ReadingProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, p := range repo.db.progress {
		if p.UserID == progress.UserID && p.BookID == progress.BookID {
			return library.ReadingProgress{}, library.ErrProgressExists
		}
	}
	progress.ID = newID()
	progress.Book = nil
	repo.db.progress[progress.ID] = &progress
	return repo.withBook(progress), nil
}

func (repo *libraryRepository) GetProgress(_ context.Context, filter library.ProgressFilter) (library.ReadingProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if p, ok := repo.db.progress[filter.ID]; ok {
			return repo.withBook(*p), nil
		}
		return library.ReadingProgress{}, library.ErrProgressNotFound
	}
	for _, p := range repo.db.progress {
		if p.UserID == filter.UserID && p.BookID == filter.BookID {
			return repo.withBook(*p), nil
		}
	}
	return library.ReadingProgress{}, library.ErrProgressNotFound
}

func (repo *libraryRepository) QueryProgress(_ context.Context, userIDs ...string) ([]library.ReadingProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	progress := make([]library.ReadingProgress, 0)
	for _, p := range repo.db.progress {
		if containsString(userIDs, p.UserID) {
			progress = append(progress, repo.withBook(*p))
		}
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].UpdatedAt.After(progress[j].UpdatedAt) })
	return progress, nil
}

func (repo *libraryRepository) UpdateProgress(_ context.Context, progress library.ReadingProgress) (library.ReadingProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.progress[progress.ID]; !ok {
		return library.ReadingProgress{}, library.ErrProgressNotFound
	}
	progress.Book = nil
	repo.db.progress[progress.ID] = &progress
	return repo.withBook(progress), nil
}

func (repo *libraryRepository) DeleteProgress(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.progress[id]; !ok {
		return library.ErrProgressNotFound
	}
	delete(repo.db.progress, id)
	return nil
}
