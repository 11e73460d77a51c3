// Package smtp sends email over SMTP.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mail "github.com/wneessen/go-mail"

	"github.com/crossfellowship/registrar/internal/email"
)

const ProviderName email.ProviderName = "smtp"

const senderName = "The Cross Fellowship"

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Security is "tls", "starttls" or "none".
	Security string
	From     string
}

type Adapter struct {
	logger *slog.Logger
	cfg    Config
}

func New(log *slog.Logger, cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Security == "" {
		cfg.Security = "starttls"
	}
	if strings.TrimSpace(cfg.From) == "" {
		cfg.From = cfg.Username
	}
	// App passwords are often pasted with spaces.
	cfg.Password = strings.Join(strings.Fields(cfg.Password), "")
	return &Adapter{logger: log.With(slog.String("adapter", "smtp")), cfg: cfg}, nil
}

func (a *Adapter) Type() email.ProviderName { return ProviderName }

func (a *Adapter) Send(ctx context.Context, msg email.OutboundEmail) (string, error) {
	m, err := a.buildMessage(msg)
	if err != nil {
		return "", err
	}

	opts := []mail.Option{mail.WithPort(a.cfg.Port)}
	if a.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(a.cfg.Username),
			mail.WithPassword(a.cfg.Password),
		)
	}
	switch a.cfg.Security {
	case "tls":
		opts = append(opts, mail.WithSSLPort(false), mail.WithTLSPolicy(mail.TLSMandatory))
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(a.cfg.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return m.GetMessageID(), nil
}

func (a *Adapter) buildMessage(msg email.OutboundEmail) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(senderName, a.cfg.From); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.HTML {
		m.SetBodyString(mail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.Body)
	}
	m.SetMessageID()
	return m, nil
}

var _ email.Adapter = (*Adapter)(nil)
