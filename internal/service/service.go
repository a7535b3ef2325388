package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/psds-microservice/portal-service/internal/errs"
	"github.com/psds-microservice/portal-service/internal/kafka"
)

// eventTimeout ограничивает отправку события: оно уходит даже после отмены запроса.
const eventTimeout = 5 * time.Second

// Длины совпадают с колонками в migrations.
const (
	maxBookingIDLen = 64
	maxSubjectLen   = 255
	maxEmailLen     = 255
	maxNameLen      = 255
	maxPhoneLen     = 64
	maxPersonalName = 128
)

// checkLen rejects v when it does not fit a varchar(max) column.
func checkLen(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return errs.New(errs.CodeInvalidArgument, fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}

type deps struct {
	now    func() time.Time
	events kafka.EventPublisher
	log    *slog.Logger
}

type Option func(*deps)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func WithPublisher(p kafka.EventPublisher) Option {
	return func(d *deps) { d.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *deps) { d.log = l }
}

func newDeps(opts []Option) deps {
	d := deps{
		now: func() time.Time { return time.Now().UTC() },
		log: slog.Default(),
	}
	for _, o := range opts {
		o(&d)
	}
	return d
}

// emit публикует событие в фоне. Ошибка только логируется.
func (d deps) emit(event string, payload map[string]interface{}) {
	if d.events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := d.events.Publish(ctx, event, payload); err != nil {
			d.log.Warn("event publish failed", "event", event, "error", err)
		}
	}()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// later returns the later of two instants so timestamps never move backwards.
func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
