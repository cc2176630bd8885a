package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/family"
)

var linkColumns = columns("id", "parent_id", "child_id", "created_at")

type linkRow struct {
	ID        string    `db:"id"`
	ParentID  string    `db:"parent_id"`
	ChildID   string    `db:"child_id"`
	CreatedAt time.Time `db:"created_at"`
}

type familyRepository struct {
	db *sqlx.DB
}

var _ family.Repository = (*familyRepository)(nil) // interface compliance check

func NewFamilyRepository(db *sqlx.DB) family.Repository {
	return &familyRepository{db: db}
}

func (repo familyRepository) CreateLink(ctx context.Context, link family.Link) (family.Link, error) {
	query := psql.Insert("parent_links").
		Columns("parent_id", "child_id", "created_at").
		Values(link.ParentID, link.ChildID, link.CreatedAt.UTC()).
		Suffix("RETURNING id")

	if err := get(ctx, repo.db, &link.ID, query); err != nil {
		if isUniqueViolation(err) {
			return family.Link{}, family.ErrAlreadyLinked
		}
		return family.Link{}, errors.Wrap(err, "inserting parent link")
	}
	return link, nil
}

func (repo familyRepository) QueryLinks(ctx context.Context, filter family.LinkFilter) ([]family.Link, error) {
	query := psql.Select(linkColumns).From("parent_links").OrderBy("created_at ASC")
	if filter.ParentID != "" {
		query = query.Where(sq.Eq{"parent_id": validUUIDs([]string{filter.ParentID})})
	}
	if filter.ChildID != "" {
		query = query.Where(sq.Eq{"child_id": validUUIDs([]string{filter.ChildID})})
	}

	var rows []linkRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying parent links")
	}
	links := make([]family.Link, 0, len(rows))
	for _, r := range rows {
		links = append(links, family.Link{
			ID:        r.ID,
			ParentID:  r.ParentID,
			ChildID:   r.ChildID,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return links, nil
}
