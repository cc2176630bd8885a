package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/family"
)

type familyRepository struct {
	db *DB
}

func NewFamilyRepository(db *DB) family.Repository {
	return &familyRepository{db: db}
}

func (repo *familyRepository) CreateLink(_ context.Context, link family.Link) (family.Link, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, l := range repo.db.links {
		if l.ParentID == link.ParentID && l.ChildID == link.ChildID {
			return family.Link{}, family.ErrAlreadyLinked
		}
	}
	link.ID = newID()
	repo.db.links[link.ID] = &link
	return link, nil
}

func (repo *familyRepository) QueryLinks(_ context.Context, filter family.LinkFilter) ([]family.Link, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	links := make([]family.Link, 0)
	for _, l := range repo.db.links {
		if filter.ParentID != "" && l.ParentID != filter.ParentID {
			continue
		}
		if filter.ChildID != "" && l.ChildID != filter.ChildID {
			continue
		}
		links = append(links, *l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].CreatedAt.Before(links[j].CreatedAt) })
	return links, nil
}
