package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/psds-microservice/portal-service/internal/errs"
	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/store"
)

// LeadService принимает заявки с публичных форм (рассылка, обратная связь).
// Уведомление отправляется событием; доставкой письма занимается почтовый сервис.
type LeadService struct {
	store store.Store
	deps
}

func NewLeadService(st store.Store, opts ...Option) *LeadService {
	return &LeadService{store: st, deps: newDeps(opts)}
}

func normalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || utf8.RuneCountInString(s) > maxEmailLen {
		return "", errs.ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// Subscribe adds email to the newsletter. Repeated signups succeed with created=false.
func (s *LeadService) Subscribe(ctx context.Context, email string) (created bool, err error) {
	email, err = normalizeEmail(email)
	if err != nil {
		return false, err
	}
	sub := &model.NewsletterSubscriber{ID: newID(), Email: email, CreatedAt: s.now()}
	created, err = s.store.AddNewsletterSubscriber(ctx, sub)
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	if created {
		s.emit("lead.newsletter", map[string]interface{}{"key": email, "email": email})
	}
	return created, nil
}

type ContactInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

func (s *LeadService) Contact(ctx context.Context, in ContactInput) (*model.ContactRequest, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	msg := strings.TrimSpace(in.Message)
	if name == "" {
		return nil, errs.New(errs.CodeInvalidArgument, "name is required")
	}
	if msg == "" {
		return nil, errs.ErrEmptyContent
	}
	phone := strings.TrimSpace(in.Phone)
	subject := strings.TrimSpace(in.Subject)
	for _, f := range []struct {
		name, value string
		limit       int
	}{
		{"name", name, maxNameLen},
		{"phone", phone, maxPhoneLen},
		{"subject", subject, maxSubjectLen},
	} {
		if err := checkLen(f.name, f.value, f.limit); err != nil {
			return nil, err
		}
	}
	r := &model.ContactRequest{
		ID:        newID(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		Subject:   subject,
		Message:   msg,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateContactRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("create contact request: %w", err)
	}
	s.emit("lead.contact", map[string]interface{}{
		"key":        r.ID,
		"contact_id": r.ID,
		"name":       r.Name,
		"email":      r.Email,
		"subject":    r.Subject,
	})
	return r, nil
}
