package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/darasa/core/livesession"
)

type sessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) livesession.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(_ context.Context, session livesession.Session) (livesession.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	session.ID = newID()
	repo.db.sessions[session.ID] = &session
	return session, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (livesession.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		return *s, nil
	}
	return livesession.Session{}, livesession.ErrNotFound
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter livesession.QueryFilter) ([]livesession.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]livesession.Session, 0)
	for _, s := range repo.db.sessions {
		if filter.ClassIDs != nil && !containsString(filter.ClassIDs, s.ClassID) {
			continue
		}
		if filter.ActiveOnly && !s.Active() {
			continue
		}
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	return sessions, nil
}

func (repo *sessionRepository) EndSession(_ context.Context, id string, at time.Time) (livesession.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s, ok := repo.db.sessions[id]
	if !ok {
		return livesession.Session{}, livesession.ErrNotFound
	}
	s.EndedAt = &at
	return *s, nil
}
