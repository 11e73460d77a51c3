// Package channel defines the transport-neutral shapes exchanged between a chat
// transport (such as Telegram) and the registration conversation.
package channel

import (
	"context"
	"io"
	"strings"
	"time"
)

// Modality classifies an inbound event by the kind of input carried.
type Modality string

const (
	ModalityCommand  Modality = "command"
	ModalityText     Modality = "text"
	ModalityButton   Modality = "button"
	ModalityContact  Modality = "contact"
	ModalityPhoto    Modality = "photo"
	ModalityDocument Modality = "document"
	ModalityAudio    Modality = "audio"
	ModalityVoice    Modality = "voice"
)

// String returns the modality as a plain string.
func (m Modality) String() string {
	return string(m)
}

// IsMedia reports whether the modality carries an attachment.
func (m Modality) IsMedia() bool {
	switch m {
	case ModalityPhoto, ModalityDocument, ModalityAudio, ModalityVoice:
		return true
	default:
		return false
	}
}

// Attachment is a remote media reference as reported by the transport.
// Size and Duration are self-reported metadata and may be zero when unknown.
type Attachment struct {
	Ref      string        `json:"ref"`
	URL      string        `json:"url,omitempty"`
	Mime     string        `json:"mime,omitempty"`
	Name     string        `json:"name,omitempty"`
	Size     int64         `json:"size,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// HasReference reports whether the attachment can be resolved.
func (a Attachment) HasReference() bool {
	return strings.TrimSpace(a.Ref) != "" || strings.TrimSpace(a.URL) != ""
}

// AttachmentPayload is a resolved attachment byte stream. The caller closes Reader.
type AttachmentPayload struct {
	Reader io.ReadCloser
	Mime   string
	Size   int64
}

// Contact is a shared phone contact.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// Event is one inbound input from a user.
type Event struct {
	Identity string
	Username string
	Modality Modality
	// Text holds free text, or the command name without the leading slash.
	Text string
	// Action holds the button payload for ModalityButton.
	Action string
	// MessageRef identifies the message that carried the tapped button.
	MessageRef string
	Contact    *Contact
	Attachment *Attachment
	ReceivedAt time.Time
}

// InboundHandler receives events from a transport.
type InboundHandler func(ctx context.Context, ev Event) error

// Button is one inline action.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Prompt is an outbound message with optional interaction affordances.
type Prompt struct {
	Text    string     `json:"text"`
	Buttons [][]Button `json:"buttons,omitempty"`
	// ContactRequest asks the transport to render a share-contact keyboard labelled with this text.
	ContactRequest string `json:"contact_request,omitempty"`
	RemoveKeyboard bool   `json:"remove_keyboard,omitempty"`
}

// IsEmpty reports whether the prompt has nothing to deliver.
func (p Prompt) IsEmpty() bool {
	return strings.TrimSpace(p.Text) == ""
}

// ButtonRows lays out buttons one per row.
func ButtonRows(buttons ...Button) [][]Button {
	rows := make([][]Button, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []Button{b})
	}
	return rows
}
