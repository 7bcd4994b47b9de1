// Package events carries account notifications from the API to the mailer,
// over RabbitMQ when it is configured.
package events

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	UserRegistered      = "user.registered"
	UserPasswordChanged = "user.password_changed"
)

// QueueName is the durable queue account events are published to.
const QueueName = "account.events"

// UserEvent is published after account changes that warrant an email.
type UserEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	OccurredAt string `json:"occurred_at"`
}

// NewUserEvent stamps an event of the given type.
func NewUserEvent(eventType, userID, email, username string) UserEvent {
	return UserEvent{
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		Username:   username,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Publisher hands events off. Publish returns promptly; a broker that is
// down costs the caller at most a bounded connect attempt.
type Publisher interface {
	Publish(ctx context.Context, ev UserEvent) error
}

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev UserEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, UserEvent) error { return nil }

// Inline runs the handler in its own goroutine instead of going through a
// broker.
type Inline struct {
	Handler Handler
}

func (p Inline) Publish(_ context.Context, ev UserEvent) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.Handler.Handle(ctx, ev); err != nil {
			log.Printf("events: inline %s for %s failed: %v", ev.Type, ev.UserID, err)
		}
	}()
	return nil
}

// Mailer is what MailHandler needs from the email service.
type Mailer interface {
	SendWelcomeEmail(toEmail, username string) error
	SendPasswordChangedEmail(toEmail, username string) error
}

// MailHandler turns account events into emails.
type MailHandler struct {
	Mailer Mailer
}

func (h MailHandler) Handle(_ context.Context, ev UserEvent) error {
	switch ev.Type {
	case UserRegistered:
		return h.Mailer.SendWelcomeEmail(ev.Email, ev.Username)
	case UserPasswordChanged:
		return h.Mailer.SendPasswordChangedEmail(ev.Email, ev.Username)
	}
	return fmt.Errorf("unknown event type %q", ev.Type)
}
