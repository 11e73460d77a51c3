package email

import "errors"

type ProviderName string

var (
	// ErrDisabled is returned when no email provider is configured.
	ErrDisabled        = errors.New("email delivery is disabled")
	ErrUnknownProvider = errors.New("unknown email provider")
)

type OutboundEmail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html,omitempty"`
}
