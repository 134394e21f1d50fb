package inmemdb

import (
	"context"

	"github.com/redinnovafp/backend/core/message"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(_ context.Context, msg message.Message) (message.Message, error) {
	repo.db.message.upsert(msg.ID, msg)
	return msg, repo.db.changed(AppStorage)
}

func (repo *messageRepository) GetMessageByID(_ context.Context, id string) (message.Message, error) {
	if msg, ok := repo.db.message.get(id); ok {
		return msg, nil
	}
	return message.Message{}, message.ErrNotFound
}

func (repo *messageRepository) QueryMessagesByRecipient(_ context.Context, recipientID string) ([]message.Message, error) {
	return repo.db.message.filter(func(msg message.Message) bool { return msg.RecipientID == recipientID }), nil
}

func (repo *messageRepository) UpdateMessage(_ context.Context, msg message.Message) (message.Message, error) {
	if !repo.db.message.update(msg.ID, msg) {
		return message.Message{}, message.ErrNotFound
	}
	return msg, repo.db.changed(AppStorage)
}
