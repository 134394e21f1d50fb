package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/redinnovafp/backend/core/message"
)

const messageColumns = "id, sender_id, recipient_id, content, created_at, read_at"

type (
	messageRepository struct {
		db *sqlx.DB
	}

	messageRow struct {
		ID          string    `db:"id"`
		SenderID    string    `db:"sender_id"`
		RecipientID string    `db:"recipient_id"`
		Content     string    `db:"content"`
		CreatedAt   time.Time `db:"created_at"`
		ReadAt      null.Time `db:"read_at"`
	}
)

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *sqlx.DB) message.Repository {
	return &messageRepository{db: db}
}

func toMessageRow(msg message.Message) messageRow {
	return messageRow{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt.UTC(),
		ReadAt:      null.TimeFromPtr(msg.ReadAt),
	}
}

func (row messageRow) message() message.Message {
	return message.Message{
		ID:          row.ID,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		Content:     row.Content,
		CreatedAt:   row.CreatedAt.UTC(),
		ReadAt:      row.ReadAt.Ptr(),
	}
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	q := `INSERT INTO messages (` + messageColumns + `) VALUES (:id, :sender_id, :recipient_id, :content, :created_at, :read_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toMessageRow(msg)); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo messageRepository) GetMessageByID(ctx context.Context, id string) (message.Message, error) {
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id::text = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, errors.Wrap(err, "getting message")
	}
	return row.message(), nil
}

func (repo messageRepository) QueryMessagesByRecipient(ctx context.Context, recipientID string) ([]message.Message, error) {
	var rows []messageRow
	q := `SELECT ` + messageColumns + ` FROM messages WHERE recipient_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, recipientID); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.message())
	}
	return msgs, nil
}

func (repo messageRepository) UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE messages SET content = :content, read_at = :read_at WHERE id = :id`, toMessageRow(msg))
	if err != nil {
		return message.Message{}, errors.Wrap(err, "updating message")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return message.Message{}, message.ErrNotFound
	}
	return msg, nil
}
