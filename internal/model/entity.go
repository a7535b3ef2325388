package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleTourist    Role = "tourist"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleTourist, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

type User struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ExternalIdentityID string    `gorm:"uniqueIndex;not null" json:"external_identity_id"`
	Email              string    `gorm:"type:varchar(255)" json:"email"`
	FirstName          string    `gorm:"type:varchar(128)" json:"first_name"`
	LastName           string    `gorm:"type:varchar(128)" json:"last_name"`
	ImageURL           string    `gorm:"type:text" json:"image_url,omitempty"`
	Role               Role      `gorm:"type:varchar(32);index;not null" json:"role"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DisplayName — "First Last" без лишних пробелов, email если имя пустое.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Conversation — диалог ровно двух участников (турист и администратор).
// PairKey хранит отсортированную пару id и уникален в хранилище.
type Conversation struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ParticipantA   string    `gorm:"type:varchar(36);index;not null" json:"-"`
	ParticipantB   string    `gorm:"type:varchar(36);index;not null" json:"-"`
	PairKey        string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"-"`
	ParticipantIDs []string  `gorm:"-" json:"participant_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Participants returns the ordered participant pair.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// FillParticipantIDs copies the stored pair into the JSON-facing slice.
func (c *Conversation) FillParticipantIDs() {
	c.ParticipantIDs = c.Participants()
}

func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Other returns the counterpart of userID, or "" when userID is not a participant.
func (c *Conversation) Other(userID string) string {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

// PairKey canonicalizes an unordered pair of user ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);index;not null" json:"conversation_id"`
	SenderID       string    `gorm:"type:varchar(36);not null" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// MessageView — сообщение с разрешённым отправителем.
type MessageView struct {
	Message
	SenderName string `json:"sender_name"`
	SenderRole string `json:"sender_role"`
}

const (
	UnknownSenderName = "Unknown User"
	UnknownSenderRole = "unknown"
)

type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

type SupportTicket struct {
	ID        string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BookingID string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"booking_id"`
	UserID    string       `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Subject   string       `gorm:"type:varchar(255)" json:"subject"`
	Status    TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
}

type SupportMessage struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TicketID  string    `gorm:"type:varchar(36);index;not null" json:"ticket_id"`
	SenderID  string    `gorm:"type:varchar(36);not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TicketThread — тикет вместе с сообщениями по возрастанию времени.
type TicketThread struct {
	SupportTicket
	Messages []SupportMessage `json:"messages"`
}

type NewsletterSubscriber struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type ContactRequest struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);not null" json:"email"`
	Phone     string    `gorm:"type:varchar(64)" json:"phone,omitempty"`
	Subject   string    `gorm:"type:varchar(255)" json:"subject,omitempty"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
