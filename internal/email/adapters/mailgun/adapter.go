// Package mailgun sends email through the Mailgun HTTP API.
package mailgun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mg "github.com/mailgun/mailgun-go/v5"

	"github.com/crossfellowship/registrar/internal/email"
)

const ProviderName email.ProviderName = "mailgun"

type Config struct {
	Domain string
	APIKey string
	// Region is "us" or "eu".
	Region string
	From   string
}

type Adapter struct {
	logger *slog.Logger
	client *mg.Client
	domain string
	from   string
}

func New(log *slog.Logger, cfg Config) (*Adapter, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, errors.New("mailgun domain is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mailgun api key is required")
	}
	client := mg.NewMailgun(cfg.APIKey)
	if strings.EqualFold(cfg.Region, "eu") {
		client.SetAPIBase(mg.APIBaseEU)
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = fmt.Sprintf("noreply@%s", domain)
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "mailgun")),
		client: client,
		domain: domain,
		from:   from,
	}, nil
}

func (a *Adapter) Type() email.ProviderName { return ProviderName }

func (a *Adapter) Send(ctx context.Context, msg email.OutboundEmail) (string, error) {
	text := msg.Body
	if msg.HTML {
		text = ""
	}
	m := mg.NewMessage(a.domain, a.from, msg.Subject, text, msg.To...)
	if msg.HTML {
		m.SetHTML(msg.Body)
	}
	resp, err := a.client.Send(ctx, m)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	return resp.ID, nil
}

var _ email.Adapter = (*Adapter)(nil)
