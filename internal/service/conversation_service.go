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

// ConversationService — диалоги турист ↔ администратор и их сообщения.
type ConversationService struct {
	store store.Store
	users *UserService
	deps
}

func NewConversationService(st store.Store, users *UserService, opts ...Option) *ConversationService {
	return &ConversationService{store: st, users: users, deps: newDeps(opts)}
}

// counterpartRole is the role the other participant must currently hold for
// a conversation to be listed for a caller with the given role.
func counterpartRole(r model.Role) (model.Role, bool) {
	switch r {
	case model.RoleTourist:
		return model.RoleAdmin, true
	case model.RoleAdmin:
		return model.RoleTourist, true
	}
	return "", false
}

// ListFor returns the conversations of userID whose other participant
// currently holds the counterpart role. Callers may list their own
// conversations; staff may list anyone's.
func (s *ConversationService) ListFor(ctx context.Context, userID string) ([]model.Conversation, error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if caller.ID != userID && !access.IsStaff(caller) {
		return nil, errs.ErrUnauthorized
	}
	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	want, ok := counterpartRole(owner.Role)
	if !ok {
		return []model.Conversation{}, nil
	}
	convs, err := s.store.ListConversationsByParticipant(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	roles := make(map[string]model.Role)
	out := make([]model.Conversation, 0, len(convs))
	for _, c := range convs {
		other := c.Other(owner.ID)
		role, seen := roles[other]
		if !seen {
			if u, err := s.store.GetUser(ctx, other); err == nil {
				role = u.Role
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("load participant: %w", err)
			}
			roles[other] = role
		}
		if role == want {
			out = append(out, c)
		}
	}
	return out, nil
}

// validPair reports whether the two roles are exactly one tourist and one
// admin, with super_admin filling the admin slot.
func validPair(a, b model.Role) bool {
	isAdmin := func(r model.Role) bool { return r == model.RoleAdmin || r == model.RoleSuperAdmin }
	return (a == model.RoleTourist && isAdmin(b)) || (b == model.RoleTourist && isAdmin(a))
}

// FindOrCreate returns the conversation between userA and userB, creating it
// on first use. The store enforces one conversation per unordered pair; a
// lost creation race resolves to the winner's conversation.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if caller.ID != userA && caller.ID != userB && !access.IsStaff(caller) {
		return nil, errs.ErrUnauthorized
	}
	a, err := s.users.GetByID(ctx, userA)
	if err != nil {
		return nil, err
	}
	b, err := s.users.GetByID(ctx, userB)
	if err != nil {
		return nil, err
	}
	if a.ID == b.ID || !validPair(a.Role, b.Role) {
		return nil, errs.ErrInvalidPairing
	}

	key := model.PairKey(a.ID, b.ID)
	if c, err := s.store.FindConversationByPair(ctx, key); err == nil {
		return c, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	now := s.now()
	c := &model.Conversation{
		ID:           newID(),
		ParticipantA: a.ID,
		ParticipantB: b.ID,
		PairKey:      key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.store.FindConversationByPair(ctx, key)
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	c.FillParticipantIDs()
	s.log.Info("conversation created", "conversation_id", c.ID)
	s.emit("conversation.created", map[string]interface{}{
		"key":             c.ID,
		"conversation_id": c.ID,
		"participant_ids": c.Participants(),
	})
	return c, nil
}

// Send appends a message from the caller. The sender is always the
// authenticated user, who must be a participant of the conversation.
func (s *ConversationService) Send(ctx context.Context, conversationID, content string) (*model.Message, error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.ErrEmptyContent
	}

	var msg *model.Message
	err = s.store.Transact(ctx, func(tx store.Store) error {
		c, err := tx.GetConversation(ctx, conversationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errs.ErrConversationNotFound
			}
			return err
		}
		if !c.HasParticipant(caller.ID) {
			return errs.ErrNotParticipant
		}
		now := later(c.UpdatedAt, s.now())
		msg = &model.Message{
			ID:             newID(),
			ConversationID: c.ID,
			SenderID:       caller.ID,
			Content:        content,
			IsRead:         false,
			CreatedAt:      now,
		}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return tx.TouchConversation(ctx, c.ID, now)
	})
	if err != nil {
		return nil, err
	}
	s.emit("message.sent", map[string]interface{}{
		"key":             msg.ConversationID,
		"conversation_id": msg.ConversationID,
		"message_id":      msg.ID,
		"sender_id":       msg.SenderID,
	})
	return msg, nil
}

// Messages returns the thread in creation order with resolved senders.
// Participants and staff may read it.
func (s *ConversationService) Messages(ctx context.Context, conversationID string) ([]model.MessageView, error) {
	caller, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.ErrConversationNotFound
		}
		return nil, err
	}
	if !c.HasParticipant(caller.ID) && !access.IsStaff(caller) {
		return nil, errs.ErrNotParticipant
	}
	msgs, err := s.store.ListMessages(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	senders := make(map[string]*model.User)
	out := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		u, seen := senders[m.SenderID]
		if !seen {
			u, err = s.store.GetUser(ctx, m.SenderID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("load sender: %w", err)
			}
			senders[m.SenderID] = u
		}
		view := model.MessageView{Message: m, SenderName: model.UnknownSenderName, SenderRole: model.UnknownSenderRole}
		if u != nil {
			view.SenderName = u.DisplayName()
			view.SenderRole = string(u.Role)
		}
		out = append(out, view)
	}
	return out, nil
}
