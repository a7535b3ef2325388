// Package memstore is an in-memory store.Store with the same uniqueness
// rules as the PostgreSQL schema. Transact does not roll back.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/store"
)

type Store struct {
	mu sync.RWMutex

	users          map[string]model.User
	conversations  []model.Conversation
	messages       []model.Message
	tickets        []model.SupportTicket
	ticketMessages []model.SupportMessage
	subscribers    map[string]model.NewsletterSubscriber
	contacts       []model.ContactRequest
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       make(map[string]model.User),
		subscribers: make(map[string]model.NewsletterSubscriber),
	}
}

func (s *Store) Transact(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ExternalIdentityID == externalID {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, role model.Role) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	for _, existing := range s.users {
		if existing.ExternalIdentityID == u.ExternalIdentityID {
			return store.ErrDuplicate
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) SaveUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	s.users[u.ID] = *u
	return nil
}

// DeleteUser removes a user record. Only tests need it.
func (s *Store) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *Store) CreateConversation(_ context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.conversations {
		if existing.PairKey == c.PairKey {
			return store.ErrDuplicate
		}
	}
	c.FillParticipantIDs()
	s.conversations = append(s.conversations, *c)
	return nil
}

func (s *Store) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			c.FillParticipantIDs()
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindConversationByPair(_ context.Context, pairKey string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.PairKey == pairKey {
			c.FillParticipantIDs()
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListConversationsByParticipant(_ context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Conversation{}
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			c.FillParticipantIDs()
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) TouchConversation(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			if at.After(s.conversations[i].UpdatedAt) {
				s.conversations[i].UpdatedAt = at
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) InsertMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MessageCount returns the number of messages stored for a conversation.
func (s *Store) MessageCount(conversationID string) int {
	msgs, _ := s.ListMessages(context.Background(), conversationID)
	return len(msgs)
}

func (s *Store) CreateTicket(_ context.Context, t *model.SupportTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.BookingID == t.BookingID || existing.ID == t.ID {
			return store.ErrDuplicate
		}
	}
	s.tickets = append(s.tickets, *t)
	return nil
}

func (s *Store) GetTicket(_ context.Context, id string) (*model.SupportTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetTicketByBooking(_ context.Context, bookingID string) (*model.SupportTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.BookingID == bookingID {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTickets(_ context.Context, filter store.TicketFilter, limit, offset int) ([]model.SupportTicket, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []model.SupportTicket{}
	for _, t := range s.tickets {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		items = append(items, t)
	}
	total := int64(len(items))
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(items) {
			return []model.SupportTicket{}, total, nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (s *Store) ListAllTickets(_ context.Context) ([]model.SupportTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SupportTicket(nil), s.tickets...), nil
}

// TicketCount returns the number of tickets stored for a booking.
func (s *Store) TicketCount(bookingID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tickets {
		if t.BookingID == bookingID {
			n++
		}
	}
	return n
}

func (s *Store) CloseTicket(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tickets {
		if s.tickets[i].ID != id {
			continue
		}
		if s.tickets[i].Status != model.TicketStatusClosed {
			s.tickets[i].Status = model.TicketStatusClosed
			s.tickets[i].ClosedAt = &at
		}
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) InsertTicketMessage(_ context.Context, m *model.SupportMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticketMessages = append(s.ticketMessages, *m)
	return nil
}

func (s *Store) ListTicketMessages(_ context.Context, ticketID string) ([]model.SupportMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.SupportMessage{}
	for _, m := range s.ticketMessages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) AddNewsletterSubscriber(_ context.Context, sub *model.NewsletterSubscriber) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(sub.Email)
	if _, ok := s.subscribers[key]; ok {
		return false, nil
	}
	s.subscribers[key] = *sub
	return true, nil
}

func (s *Store) CreateContactRequest(_ context.Context, r *model.ContactRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, *r)
	return nil
}

// ContactRequests returns stored contact requests in insertion order.
func (s *Store) ContactRequests() []model.ContactRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ContactRequest(nil), s.contacts...)
}
