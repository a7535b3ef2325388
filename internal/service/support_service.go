package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/psds-microservice/portal-service/internal/access"
	"github.com/psds-microservice/portal-service/internal/errs"
	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/store"
)

// SupportService — тикеты поддержки по бронированиям: один тикет на бронирование.
type SupportService struct {
	store store.Store
	users *UserService
	deps
}

func NewSupportService(st store.Store, users *UserService, opts ...Option) *SupportService {
	return &SupportService{store: st, users: users, deps: newDeps(opts)}
}

func canAccessTicket(u *model.User, t *model.SupportTicket) bool {
	return t.UserID == u.ID || access.IsStaff(u)
}

// ForBooking returns the booking's ticket with its messages, or nil when the
// booking has no ticket yet.
func (s *SupportService) ForBooking(ctx context.Context, bookingID string) (*model.TicketThread, error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTicketByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !canAccessTicket(caller, t) {
		return nil, errs.ErrUnauthorized
	}
	msgs, err := s.store.ListTicketMessages(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	return &model.TicketThread{SupportTicket: *t, Messages: msgs}, nil
}

// Create opens a ticket for the booking with message as its first entry. If
// the booking already has a ticket, message is appended to it instead and
// subject is ignored. created reports which of the two happened.
func (s *SupportService) Create(ctx context.Context, bookingID, subject, message string) (ticketID string, created bool, err error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return "", false, err
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return "", false, errs.New(errs.CodeInvalidArgument, "booking id is required")
	}
	if err := checkLen("booking id", bookingID, maxBookingIDLen); err != nil {
		return "", false, err
	}
	subject = strings.TrimSpace(subject)
	if err := checkLen("subject", subject, maxSubjectLen); err != nil {
		return "", false, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", false, errs.ErrEmptyContent
	}

	// Вторая попытка нужна, если параллельный запрос создал тикет между чтением и вставкой.
	for attempt := 0; attempt < 2; attempt++ {
		var t *model.SupportTicket
		err = s.store.Transact(ctx, func(tx store.Store) error {
			existing, err := tx.GetTicketByBooking(ctx, bookingID)
			switch {
			case err == nil:
				if !canAccessTicket(caller, existing) {
					return errs.ErrUnauthorized
				}
				t, created = existing, false
			case errors.Is(err, store.ErrNotFound):
				t = &model.SupportTicket{
					ID:        newID(),
					BookingID: bookingID,
					UserID:    caller.ID,
					Subject:   subject,
					Status:    model.TicketStatusOpen,
					CreatedAt: s.now(),
				}
				if err := tx.CreateTicket(ctx, t); err != nil {
					return err
				}
				created = true
			default:
				return err
			}
			return tx.InsertTicketMessage(ctx, s.newSupportMessage(t.ID, caller.ID, message))
		})
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		if created {
			s.log.Info("ticket created", "ticket_id", t.ID, "booking_id", bookingID)
			s.emit("ticket.created", TicketPayload(t))
		} else {
			s.emit("ticket.message_added", TicketPayload(t))
		}
		return t.ID, created, nil
	}
	return "", false, fmt.Errorf("create ticket: %w", err)
}

func (s *SupportService) newSupportMessage(ticketID, senderID, content string) *model.SupportMessage {
	return &model.SupportMessage{
		ID:        newID(),
		TicketID:  ticketID,
		SenderID:  senderID,
		Content:   content,
		IsRead:    false,
		CreatedAt: s.now(),
	}
}

// loadForCaller resolves the caller and the ticket and checks access.
func (s *SupportService) loadForCaller(ctx context.Context, ticketID string) (*model.User, *model.SupportTicket, error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, errs.ErrTicketNotFound
		}
		return nil, nil, err
	}
	if !canAccessTicket(caller, t) {
		return nil, nil, errs.ErrUnauthorized
	}
	return caller, t, nil
}

func (s *SupportService) AddMessage(ctx context.Context, ticketID, content string) (*model.SupportMessage, error) {
	content = strings.TrimSpace(content)
	caller, t, err := s.loadForCaller(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, errs.ErrEmptyContent
	}
	m := s.newSupportMessage(t.ID, caller.ID, content)
	if err := s.store.InsertTicketMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("insert ticket message: %w", err)
	}
	s.emit("ticket.message_added", TicketPayload(t))
	return m, nil
}

// Close marks the ticket closed. Closing a closed ticket succeeds and changes nothing.
func (s *SupportService) Close(ctx context.Context, ticketID string) (*model.SupportTicket, error) {
	caller, t, err := s.loadForCaller(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TicketStatusClosed {
		return t, nil
	}
	if err := s.store.CloseTicket(ctx, t.ID, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, fmt.Errorf("close ticket: %w", err)
	}
	closed, err := s.store.GetTicket(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket closed", "ticket_id", t.ID, "by", caller.ID)
	s.emit("ticket.closed", TicketPayload(closed))
	return closed, nil
}

// List returns tickets newest first. Tourists only see their own.
func (s *SupportService) List(ctx context.Context, filter store.TicketFilter, limit, offset int) ([]model.SupportTicket, int64, error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !access.IsStaff(caller) {
		filter.UserID = caller.ID
	}
	return s.store.ListTickets(ctx, filter, limit, offset)
}

// TicketPayload is the body of ticket events.
func TicketPayload(t *model.SupportTicket) map[string]interface{} {
	return map[string]interface{}{
		"key":        t.ID,
		"ticket_id":  t.ID,
		"booking_id": t.BookingID,
		"user_id":    t.UserID,
		"subject":    t.Subject,
		"status":     string(t.Status),
	}
}
