// Package store описывает хранилище документов портала. Сервисы получают его
// явно через конструктор; gormstore работает с PostgreSQL, memstore используется в тестах.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/portal-service/internal/model"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

type TicketFilter struct {
	Status model.TicketStatus
	UserID string
}

type Store interface {
	// Transact runs fn against a store bound to a single transaction.
	Transact(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	ListUsers(ctx context.Context, role model.Role) ([]model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	SaveUser(ctx context.Context, u *model.User) error

	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	FindConversationByPair(ctx context.Context, pairKey string) (*model.Conversation, error)
	ListConversationsByParticipant(ctx context.Context, userID string) ([]model.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	InsertMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	CreateTicket(ctx context.Context, t *model.SupportTicket) error
	GetTicket(ctx context.Context, id string) (*model.SupportTicket, error)
	GetTicketByBooking(ctx context.Context, bookingID string) (*model.SupportTicket, error)
	ListTickets(ctx context.Context, filter TicketFilter, limit, offset int) ([]model.SupportTicket, int64, error)
	ListAllTickets(ctx context.Context) ([]model.SupportTicket, error)
	CloseTicket(ctx context.Context, id string, at time.Time) error

	InsertTicketMessage(ctx context.Context, m *model.SupportMessage) error
	ListTicketMessages(ctx context.Context, ticketID string) ([]model.SupportMessage, error)

	// AddNewsletterSubscriber returns created=false when the email is already subscribed.
	AddNewsletterSubscriber(ctx context.Context, s *model.NewsletterSubscriber) (created bool, err error)
	CreateContactRequest(ctx context.Context, r *model.ContactRequest) error
}
