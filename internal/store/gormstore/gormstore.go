// Package gormstore implements store.Store on PostgreSQL through GORM.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// mapError приводит ошибки GORM к ошибкам пакета store.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) Transact(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "external_identity_id = ?", externalID).Error; err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	var items []model.User
	tx := s.db.WithContext(ctx).Model(&model.User{})
	if role != "" {
		tx = tx.Where("role = ?", role)
	}
	if err := tx.Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	return mapError(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"image_url":  u.ImageURL,
		"role":       u.Role,
		"updated_at": u.UpdatedAt,
	})
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return mapError(err)
	}
	c.FillParticipantIDs()
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	c.FillParticipantIDs()
	return &c, nil
}

func (s *Store) FindConversationByPair(ctx context.Context, pairKey string) (*model.Conversation, error) {
	var c model.Conversation
	if err := s.db.WithContext(ctx).First(&c, "pair_key = ?", pairKey).Error; err != nil {
		return nil, mapError(err)
	}
	c.FillParticipantIDs()
	return &c, nil
}

func (s *Store) ListConversationsByParticipant(ctx context.Context, userID string) ([]model.Conversation, error) {
	var items []model.Conversation
	err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].FillParticipantIDs()
	}
	return items, nil
}

// TouchConversation only moves updated_at forward: a send that commits late
// with an older timestamp keeps the newer value.
func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", id).
		UpdateColumn("updated_at", gorm.Expr("GREATEST(updated_at, ?)", at))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertMessage(ctx context.Context, m *model.Message) error {
	return mapError(s.db.WithContext(ctx).Create(m).Error)
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	items := []model.Message{}
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (s *Store) CreateTicket(ctx context.Context, t *model.SupportTicket) error {
	return mapError(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Store) GetTicket(ctx context.Context, id string) (*model.SupportTicket, error) {
	var t model.SupportTicket
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (s *Store) GetTicketByBooking(ctx context.Context, bookingID string) (*model.SupportTicket, error) {
	var t model.SupportTicket
	if err := s.db.WithContext(ctx).First(&t, "booking_id = ?", bookingID).Error; err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (s *Store) ListTickets(ctx context.Context, filter store.TicketFilter, limit, offset int) ([]model.SupportTicket, int64, error) {
	items := []model.SupportTicket{}
	var total int64
	tx := s.db.WithContext(ctx).Model(&model.SupportTicket{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	if filter.UserID != "" {
		tx = tx.Where("user_id = ?", filter.UserID)
	}
	// Count total before pagination
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) ListAllTickets(ctx context.Context) ([]model.SupportTicket, error) {
	var items []model.SupportTicket
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CloseTicket is a no-op for an already closed ticket; closed_at keeps its first value.
func (s *Store) CloseTicket(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.SupportTicket
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			return mapError(err)
		}
		if t.Status == model.TicketStatusClosed {
			return nil
		}
		return tx.Model(&t).Updates(map[string]interface{}{
			"status":    model.TicketStatusClosed,
			"closed_at": at,
		}).Error
	})
}

func (s *Store) InsertTicketMessage(ctx context.Context, m *model.SupportMessage) error {
	return mapError(s.db.WithContext(ctx).Create(m).Error)
}

func (s *Store) ListTicketMessages(ctx context.Context, ticketID string) ([]model.SupportMessage, error) {
	items := []model.SupportMessage{}
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (s *Store) AddNewsletterSubscriber(ctx context.Context, sub *model.NewsletterSubscriber) (bool, error) {
	sub.Email = strings.ToLower(sub.Email)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sub)
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) CreateContactRequest(ctx context.Context, r *model.ContactRequest) error {
	return mapError(s.db.WithContext(ctx).Create(r).Error)
}
