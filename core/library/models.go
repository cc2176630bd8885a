package library

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Reading statuses
const (
	StatusWishlist  = "wishlist"
	StatusReading   = "reading"
	StatusCompleted = "completed"
)

var Statuses = []string{StatusWishlist, StatusReading, StatusCompleted}

type Book struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Genre        string    `json:"genre"`
	Description  string    `json:"description"`
	CoverURL     string    `json:"cover_url"`
	ReadingLevel string    `json:"reading_level"`
	Pages        int       `json:"pages"`
	ExternalKey  string    `json:"external_key,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

type ReadingProgress struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	BookID      string     `json:"book_id"`
	Book        *Book      `json:"book,omitempty"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	StartedAt   time.Time  `json:"started_at"`   // UTC
	CompletedAt *time.Time `json:"completed_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"`   // UTC
}

// CatalogResult is a book found in the external catalog.
type CatalogResult struct {
	ExternalKey      string `json:"external_key"`
	Title            string `json:"title"`
	Author           string `json:"author"`
	CoverURL         string `json:"cover_url"`
	Pages            int    `json:"pages"`
	FirstPublishYear int    `json:"first_publish_year,omitempty"`
}

// NewBook contains information needed to create a new Book.
type NewBook struct {
	Title        string `json:"title" validate:"required,notblank,max=300"`
	Author       string `json:"author" validate:"max=200"`
	Genre        string `json:"genre" validate:"max=100"`
	Description  string `json:"description" validate:"max=5000"`
	CoverURL     string `json:"cover_url" validate:"omitempty,url,max=1000"`
	ReadingLevel string `json:"reading_level" validate:"max=50"`
	Pages        int    `json:"pages" validate:"min=0"`
	ExternalKey  string `json:"external_key" validate:"max=100"`
}

func (nb *NewBook) Validate(validate *validator.Validate) error {
	nb.Title = core.CleanString(nb.Title)
	nb.Author = core.CleanString(nb.Author)
	nb.Genre = core.CleanString(nb.Genre)
	nb.Description = core.CleanString(nb.Description)
	nb.CoverURL = core.CleanString(nb.CoverURL)
	nb.ReadingLevel = core.CleanString(nb.ReadingLevel)
	nb.ExternalKey = core.CleanString(nb.ExternalKey)
	return validate.Struct(nb)
}

// AddToLibrary adds an existing book (BookID) or a catalog book (Book) to a user's library.
type AddToLibrary struct {
	BookID string   `json:"book_id" validate:"required_without=Book"`
	Book   *NewBook `json:"book" validate:"required_without=BookID"`
	Status string   `json:"status" validate:"omitempty,oneof=wishlist reading completed"`
}

func (al *AddToLibrary) Validate(validate *validator.Validate) error {
	al.BookID = core.CleanString(al.BookID)
	al.Status = core.CleanString(al.Status, true /* lower */)
	if al.Status == "" {
		al.Status = StatusReading
	}
	if al.Book != nil {
		if err := al.Book.Validate(validate); err != nil {
			return err
		}
	}
	return validate.Struct(al)
}

type UpdateProgress struct {
	Progress *int   `json:"progress" validate:"omitempty,min=0,max=100"`
	Status   string `json:"status" validate:"omitempty,oneof=wishlist reading completed"`
}

func (up *UpdateProgress) Validate(validate *validator.Validate) error {
	up.Status = core.CleanString(up.Status, true /* lower */)
	return validate.Struct(up)
}

type SearchRequest struct {
	Query string `json:"q" query:"q" validate:"required,notblank,max=200"`
	Limit int    `json:"limit" query:"limit" validate:"min=0,max=50"`
}

func (sr *SearchRequest) Validate(validate *validator.Validate) error {
	sr.Query = core.CleanString(sr.Query)
	if sr.Limit == 0 {
		sr.Limit = 10
	}
	return validate.Struct(sr)
}

type BookFilter struct {
	ID          string
	ExternalKey string
}

type ProgressFilter struct {
	ID     string
	UserID string
	BookID string
}
