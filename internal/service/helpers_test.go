package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/portal-service/internal/identity"
	"github.com/psds-microservice/portal-service/internal/model"
	"github.com/psds-microservice/portal-service/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	name    string
	payload map[string]interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event string, payload map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: event, payload: payload})
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

func (p *recordingPublisher) has(name string) bool {
	for _, n := range p.names() {
		if n == name {
			return true
		}
	}
	return false
}

// stepClock advances by one second on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store  *memstore.Store
	events *recordingPublisher
	clock  *stepClock
	users  *UserService
	convs  *ConversationService
	tix    *SupportService
	leads  *LeadService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.New(),
		events: &recordingPublisher{},
		clock:  newStepClock(),
	}
	opts := []Option{WithClock(f.clock.Now), WithPublisher(f.events)}
	f.users = NewUserService(f.store, opts...)
	f.convs = NewConversationService(f.store, f.users, opts...)
	f.tix = NewSupportService(f.store, f.users, opts...)
	f.leads = NewLeadService(f.store, opts...)
	return f
}

// seedUser inserts a user whose external identity is "ext-"+id.
func (f *fixture) seedUser(t *testing.T, id string, role model.Role, first, last, email string) *model.User {
	t.Helper()
	now := f.clock.Now()
	u := &model.User{
		ID:                 id,
		ExternalIdentityID: "ext-" + id,
		Email:              email,
		FirstName:          first,
		LastName:           last,
		Role:               role,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func as(u *model.User) context.Context {
	return identity.WithIdentity(context.Background(), &identity.Identity{Subject: u.ExternalIdentityID})
}

func asSubject(subject string) context.Context {
	return identity.WithIdentity(context.Background(), &identity.Identity{Subject: subject})
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)
