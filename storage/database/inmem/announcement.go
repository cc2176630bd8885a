package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/announcement"
)

type announcementRepository struct {
	db *DB
}

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) CreateMessage(_ context.Context, msg announcement.Message) (announcement.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	msg.ID = newID()
	repo.db.messages[msg.ID] = &msg
	return msg, nil
}

func (repo *announcementRepository) GetMessage(_ context.Context, id string) (announcement.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if msg, ok := repo.db.messages[id]; ok {
		return *msg, nil
	}
	return announcement.Message{}, announcement.ErrNotFound
}

func (repo *announcementRepository) QueryMessages(_ context.Context, filter announcement.QueryFilter) ([]announcement.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]announcement.Message, 0)
	for _, msg := range repo.db.messages {
		matches := (msg.ClassID != "" && containsString(filter.ClassIDs, msg.ClassID)) ||
			(filter.RecipientID != "" && msg.RecipientID == filter.RecipientID)
		if !matches || (filter.UnreadOnly && msg.Read) {
			continue
		}
		msgs = append(msgs, *msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *announcementRepository) MarkRead(_ context.Context, id string) (announcement.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	msg, ok := repo.db.messages[id]
	if !ok {
		return announcement.Message{}, announcement.ErrNotFound
	}
	msg.Read = true
	return *msg, nil
}
