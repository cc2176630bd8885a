package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/announcement"
)

var messageColumns = columns(
	"id", "sender_id", "class_id", "recipient_id", "title", "content", "type", "read", "created_at",
)

type messageRow struct {
	ID          string      `db:"id"`
	SenderID    string      `db:"sender_id"`
	ClassID     null.String `db:"class_id"`
	RecipientID null.String `db:"recipient_id"`
	Title       string      `db:"title"`
	Content     string      `db:"content"`
	Type        string      `db:"type"`
	Read        bool        `db:"read"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (row messageRow) unboil() announcement.Message {
	return announcement.Message{
		ID:          row.ID,
		SenderID:    row.SenderID,
		ClassID:     row.ClassID.String,
		RecipientID: row.RecipientID.String,
		Title:       row.Title,
		Content:     row.Content,
		Type:        row.Type,
		Read:        row.Read,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type announcementRepository struct {
	db *sqlx.DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) announcement.Repository {
	return &announcementRepository{db: db}
}

func (repo announcementRepository) CreateMessage(ctx context.Context, msg announcement.Message) (announcement.Message, error) {
	query := psql.Insert("messages").
		Columns("sender_id", "class_id", "recipient_id", "title", "content", "type", "read", "created_at").
		Values(msg.SenderID, null.NewString(msg.ClassID, msg.ClassID != ""),
			null.NewString(msg.RecipientID, msg.RecipientID != ""),
			msg.Title, msg.Content, msg.Type, msg.Read, msg.CreatedAt.UTC()).
		Suffix("RETURNING id")

	if err := get(ctx, repo.db, &msg.ID, query); err != nil {
		return announcement.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo announcementRepository) GetMessage(ctx context.Context, id string) (announcement.Message, error) {
	if !validUUID(id) {
		return announcement.Message{}, announcement.ErrNotFound
	}
	var row messageRow
	if err := get(ctx, repo.db, &row, psql.Select(messageColumns).From("messages").Where(sq.Eq{"id": id})); err != nil {
		return announcement.Message{}, trapNoRowsErr(err, announcement.ErrNotFound, "finding message")
	}
	return row.unboil(), nil
}

func (repo announcementRepository) QueryMessages(ctx context.Context, filter announcement.QueryFilter) ([]announcement.Message, error) {
	or := sq.Or{}
	if classIDs := validUUIDs(filter.ClassIDs); len(classIDs) > 0 {
		or = append(or, sq.Eq{"class_id": classIDs})
	}
	if validUUID(filter.RecipientID) {
		or = append(or, sq.Eq{"recipient_id": filter.RecipientID})
	}
	if len(or) == 0 {
		return []announcement.Message{}, nil
	}

	query := psql.Select(messageColumns).From("messages").Where(or).OrderBy("created_at DESC")
	if filter.UnreadOnly {
		query = query.Where(sq.Eq{"read": false})
	}

	var rows []messageRow
	if err := selectAll(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]announcement.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.unboil())
	}
	return msgs, nil
}

func (repo announcementRepository) MarkRead(ctx context.Context, id string) (announcement.Message, error) {
	if !validUUID(id) {
		return announcement.Message{}, announcement.ErrNotFound
	}
	query := psql.Update("messages").Set("read", true).Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + messageColumns)

	var row messageRow
	if err := get(ctx, repo.db, &row, query); err != nil {
		return announcement.Message{}, trapNoRowsErr(err, announcement.ErrNotFound, "marking message read")
	}
	return row.unboil(), nil
}
