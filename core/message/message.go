package message

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
)

// SystemSender is the sender id of automatic notifications.
const SystemSender = "system"

var (
	NowFunc = time.Now // mockable

	ErrNotFound = errors.New("message not found")
)

type (
	Message struct {
		ID          string     `json:"id"`
		SenderID    string     `json:"sender_id"`
		RecipientID string     `json:"recipient_id"`
		Content     string     `json:"content"`
		CreatedAt   time.Time  `json:"created_at"`
		ReadAt      *time.Time `json:"read_at"`
	}

	NewMessage struct {
		SenderID    string `json:"-"`
		RecipientID string `json:"recipient_id" validate:"required"`
		Content     string `json:"content" validate:"required,notblank"`
	}

	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessageByID(ctx context.Context, id string) (Message, error)
		QueryMessagesByRecipient(ctx context.Context, recipientID string) ([]Message, error)
		UpdateMessage(ctx context.Context, msg Message) (Message, error)
	}

	Service struct {
		repo Repository
	}
)

func (m Message) IsRead() bool { return m.ReadAt != nil }

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Send stores a message in the recipient's inbox.
func (svc *Service) Send(ctx context.Context, nm NewMessage) (Message, error) {
	if nm.RecipientID == "" {
		return Message{}, core.NewValidationError(nil, core.FieldError{Field: "recipient_id", Error: "this field is required"})
	}
	if nm.SenderID == "" {
		nm.SenderID = SystemSender
	}
	msg := Message{
		ID:          uuid.New().String(),
		SenderID:    nm.SenderID,
		RecipientID: nm.RecipientID,
		Content:     nm.Content,
		CreatedAt:   NowFunc().UTC(),
	}
	return svc.repo.CreateMessage(ctx, msg)
}

// Inbox returns the messages received by userID, newest first.
func (svc *Service) Inbox(ctx context.Context, userID string) ([]Message, error) {
	msgs, err := svc.repo.QueryMessagesByRecipient(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	return msgs, nil
}

// UnreadCount returns the number of unread messages of userID.
func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	msgs, err := svc.repo.QueryMessagesByRecipient(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "querying messages")
	}
	var count int
	for _, msg := range msgs {
		if !msg.IsRead() {
			count++
		}
	}
	return count, nil
}

// MarkRead marks the message as read. Only the recipient can read their messages.
func (svc *Service) MarkRead(ctx context.Context, userID, id string) (Message, error) {
	msg, err := svc.repo.GetMessageByID(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if msg.RecipientID != userID {
		return Message{}, ErrNotFound
	}
	if msg.IsRead() {
		return msg, nil
	}
	now := NowFunc().UTC()
	msg.ReadAt = &now
	return svc.repo.UpdateMessage(ctx, msg)
}
