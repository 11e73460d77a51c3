package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []OutboundEmail
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg OutboundEmail) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, msg)
	return "msg-1", nil
}

func TestInvitationRenderEscapesValues(t *testing.T) {
	t.Parallel()

	body, err := Invitation{Email: "a<b>@example.com", TempPassword: "1a2b3c4d", Role: "super_admin"}.Render("https://dash.example.com")
	require.NoError(t, err)
	assert.Contains(t, body, "Super Admin")
	assert.Contains(t, body, "1a2b3c4d")
	assert.Contains(t, body, `href="https://dash.example.com"`)
	assert.NotContains(t, body, "a<b>@")
}

func TestMailerSendInvitation(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	mailer := NewMailer(nil, sender, "http://localhost:3000")
	require.NoError(t, mailer.SendInvitation(context.Background(), Invitation{Email: "r@example.com", TempPassword: "pw", Role: "reviewer"}))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"r@example.com"}, msg.To)
	assert.True(t, msg.HTML)
	assert.Equal(t, invitationSubject, msg.Subject)
	assert.True(t, strings.Contains(msg.Body, "Reviewer"))

	sender.err = errors.New("smtp down")
	assert.Error(t, mailer.SendInvitation(context.Background(), Invitation{Email: "r@example.com"}))
}

func TestMailerWithoutSenderIsDisabled(t *testing.T) {
	t.Parallel()

	err := NewMailer(nil, nil, "").SendInvitation(context.Background(), Invitation{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrDisabled)
}

type namedSender struct {
	recordingSender
	name ProviderName
}

func (s *namedSender) Type() ProviderName { return s.name }

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&namedSender{name: "smtp"})
	got, err := reg.Get("smtp")
	require.NoError(t, err)
	assert.Equal(t, ProviderName("smtp"), got.Type())

	_, err = reg.Get("carrier-pigeon")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
