package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
)

const invitationSubject = "You have been invited to The Cross Fellowship Admin Dashboard"

var invitationTemplate = template.Must(template.New("invitation").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; text-align: center;">
  <h2 style="color: #2563eb;">Welcome to The Cross Fellowship</h2>
  <div style="text-align: left;">
    <p>You have been invited as a <strong>{{.RoleName}}</strong> on The Cross Fellowship Admin Dashboard.</p>
    <div style="background-color: #f3f4f6; border-radius: 8px; padding: 20px; margin: 20px 0;">
      <p style="margin: 5px 0;"><strong>Login URL:</strong> <a href="{{.LoginURL}}">{{.LoginURL}}</a></p>
      <p style="margin: 5px 0;"><strong>Email:</strong> {{.Email}}</p>
      <p style="margin: 5px 0;"><strong>Temporary Password:</strong> {{.TempPassword}}</p>
    </div>
    <p style="color: #ef4444;"><strong>⚠️ Please change your password after your first login.</strong></p>
    <p style="color: #6b7280; font-size: 12px;">If you did not expect this invitation, please ignore this email.</p>
  </div>
</div>
`))

// Invitation carries the credentials mailed to a new dashboard user.
type Invitation struct {
	Email        string
	TempPassword string
	Role         string
}

// RoleName is the human-readable role.
func (i Invitation) RoleName() string {
	if i.Role == "super_admin" {
		return "Super Admin"
	}
	return "Reviewer"
}

// Render returns the HTML body of the invitation.
func (i Invitation) Render(loginURL string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Invitation
		RoleName string
		LoginURL string
	}{Invitation: i, RoleName: i.RoleName(), LoginURL: loginURL}
	if err := invitationTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render invitation: %w", err)
	}
	return buf.String(), nil
}

// Mailer sends account emails through a Sender.
type Mailer struct {
	logger   *slog.Logger
	sender   Sender
	loginURL string
}

// NewMailer returns a Mailer. A nil sender disables delivery.
func NewMailer(log *slog.Logger, sender Sender, loginURL string) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{
		logger:   log.With(slog.String("service", "email")),
		sender:   sender,
		loginURL: strings.TrimSpace(loginURL),
	}
}

func (m *Mailer) SendInvitation(ctx context.Context, inv Invitation) error {
	if m == nil || m.sender == nil {
		return ErrDisabled
	}
	body, err := inv.Render(m.loginURL)
	if err != nil {
		return err
	}
	id, err := m.sender.Send(ctx, OutboundEmail{
		To:      []string{inv.Email},
		Subject: invitationSubject,
		Body:    body,
		HTML:    true,
	})
	if err != nil {
		m.logger.Error("send invitation failed", slog.String("to", inv.Email), slog.Any("error", err))
		return err
	}
	m.logger.Info("invitation sent", slog.String("to", inv.Email), slog.String("message_id", id))
	return nil
}
