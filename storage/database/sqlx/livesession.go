package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/livesession"
)

var sessionColumns = columns("id", "class_id", "teacher_id", "title", "room_name", "join_url", "started_at", "ended_at")

type sessionRow struct {
	ID        string    `db:"id"`
	ClassID   string    `db:"class_id"`
	TeacherID string    `db:"teacher_id"`
	Title     string    `db:"title"`
	RoomName  string    `db:"room_name"`
	JoinURL   string    `db:"join_url"`
	StartedAt time.Time `db:"started_at"`
	EndedAt   null.Time `db:"ended_at"`
}

func (row sessionRow) unboil() livesession.Session {
	session := livesession.Session{
		ID:        row.ID,
		ClassID:   row.ClassID,
		TeacherID: row.TeacherID,
		Title:     row.Title,
		RoomName:  row.RoomName,
		JoinURL:   row.JoinURL,
		StartedAt: row.StartedAt.UTC(),
	}
	if row.EndedAt.Valid {
		at := row.EndedAt.Time.UTC()
		session.EndedAt = &at
	}
	return session
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ livesession.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) livesession.Repository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) CreateSession(ctx context.Context, session livesession.Session) (livesession.Session, error) {
	query := psql.Insert("live_sessions").
		Columns("class_id", "teacher_id", "title", "room_name", "join_url", "started_at", "ended_at").
		Values(session.ClassID, session.TeacherID, session.Title, session.RoomName, session.JoinURL,
			session.StartedAt.UTC(), null.TimeFromPtr(session.EndedAt)).
		Suffix("RETURNING id")

	if err := get(ctx, repo.db, &session.ID, query); err != nil {
		return livesession.Session{}, errors.Wrap(err, "inserting live session")
	}
	return session, nil
}

func (repo sessionRepository) GetSession(ctx context.Context, id string) (livesession.Session, error) {
	if !validUUID(id) {
		return livesession.Session{}, livesession.ErrNotFound
	}
	var row sessionRow
	if err := get(ctx, repo.db, &row, psql.Select(sessionColumns).From("live_sessions").Where(sq.Eq{"id": id})); err != nil {
		return livesession.Session{}, trapNoRowsErr(err, livesession.ErrNotFound, "finding live session")
	}
	return row.unboil(), nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, filter livesession.QueryFilter) ([]livesession.Session, error) {
	query := psql.Select(sessionColumns).From("live_sessions").OrderBy("started_at DESC")
	if filter.ClassIDs != nil {
		query = query.Where(sq.Eq{"class_id": validUUIDs(filter.ClassIDs)})
	}
	if filter.ActiveOnly {
		query = query.Where(sq.Eq{"ended_at": nil})
	}

	var rows []sessionRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying live sessions")
	}
	sessions := make([]livesession.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.unboil())
	}
	return sessions, nil
}

func (repo sessionRepository) EndSession(ctx context.Context, id string, at time.Time) (livesession.Session, error) {
	if !validUUID(id) {
		return livesession.Session{}, livesession.ErrNotFound
	}
	query := psql.Update("live_sessions").Set("ended_at", at.UTC()).Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + sessionColumns)

	var row sessionRow
	if err := get(ctx, repo.db, &row, query); err != nil {
		return livesession.Session{}, trapNoRowsErr(err, livesession.ErrNotFound, "ending live session")
	}
	return row.unboil(), nil
}
