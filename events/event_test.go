package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct{ kind, to, username string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sent
	err  error
	done chan struct{}
}

func (m *fakeMailer) record(kind, to, username string) error {
	m.mu.Lock()
	m.sent = append(m.sent, sent{kind, to, username})
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.err
}

func (m *fakeMailer) SendWelcomeEmail(to, username string) error {
	return m.record("welcome", to, username)
}

func (m *fakeMailer) SendPasswordChangedEmail(to, username string) error {
	return m.record("password", to, username)
}

func TestMailHandlerDispatch(t *testing.T) {
	m := &fakeMailer{}
	h := MailHandler{Mailer: m}
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, NewUserEvent(UserRegistered, "1", "ann@example.com", "ann")))
	require.NoError(t, h.Handle(ctx, NewUserEvent(UserPasswordChanged, "1", "ann@example.com", "ann")))
	assert.Error(t, h.Handle(ctx, NewUserEvent("user.exploded", "1", "ann@example.com", "ann")))

	assert.Equal(t, []sent{
		{"welcome", "ann@example.com", "ann"},
		{"password", "ann@example.com", "ann"},
	}, m.sent)
}

func TestMailHandlerPropagatesMailerError(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp down")}
	err := MailHandler{Mailer: m}.Handle(context.Background(), NewUserEvent(UserRegistered, "1", "a@b.co", "a"))
	assert.EqualError(t, err, "smtp down")
}

func TestHandleMessage(t *testing.T) {
	m := &fakeMailer{}
	h := MailHandler{Mailer: m}
	ctx := context.Background()

	body, err := json.Marshal(NewUserEvent(UserRegistered, "42", "bo@example.com", "bo"))
	require.NoError(t, err)
	require.NoError(t, handleMessage(ctx, h, body))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "bo@example.com", m.sent[0].to)

	assert.ErrorContains(t, handleMessage(ctx, h, []byte("{not json")), "unmarshal")
}

func TestNewUserEventStampsTime(t *testing.T) {
	ev := NewUserEvent(UserRegistered, "1", "a@b.co", "a")
	ts, err := time.Parse(time.RFC3339, ev.OccurredAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestInlineRunsHandlerAsync(t *testing.T) {
	m := &fakeMailer{done: make(chan struct{}, 1)}
	p := Inline{Handler: MailHandler{Mailer: m}}

	require.NoError(t, p.Publish(context.Background(), NewUserEvent(UserRegistered, "1", "a@b.co", "a")))

	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestNopPublish(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), UserEvent{}))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Minute))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
