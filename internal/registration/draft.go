package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/crossfellowship/registrar/internal/applicants"
	"github.com/crossfellowship/registrar/internal/session"
)

var (
	// ErrIncompleteDraft indicates a required answer is missing at finalization.
	ErrIncompleteDraft = errors.New("registration draft incomplete")
	// ErrUnknownType indicates stored data names an unsupported applicant type.
	ErrUnknownType = errors.New("unknown applicant type")
)

const typeField = "type"

// Common holds answers shared by both applicant types. A nil field has not
// been answered yet.
type Common struct {
	Name     *string `json:"name,omitempty"`
	Church   *string `json:"church,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// Draft is a partially filled application, one of *SingerDraft or *MissionDraft.
type Draft interface {
	Type() applicants.Type
	Base() *Common
}

type SingerDraft struct {
	Common
	WorshipMinistryInvolved *bool   `json:"worship_ministry_involved,omitempty"`
	AudioURL                *string `json:"audio_url,omitempty"`
	// AudioDuration is in whole seconds.
	AudioDuration *int `json:"audio_duration,omitempty"`
}

func (d *SingerDraft) Type() applicants.Type { return applicants.TypeSinger }
func (d *SingerDraft) Base() *Common { return &d.Common }

type MissionDraft struct {
	Common
	Profession      *string `json:"profession,omitempty"`
	MissionInterest *bool   `json:"mission_interest,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	Motivation      *string `json:"motivation,omitempty"`
}

func (d *MissionDraft) Type() applicants.Type { return applicants.TypeMission }
func (d *MissionDraft) Base() *Common { return &d.Common }

// NewDraft returns an empty draft for the type.
func NewDraft(t applicants.Type) (Draft, error) {
	switch t {
	case applicants.TypeSinger:
		return &SingerDraft{}, nil
	case applicants.TypeMission:
		return &MissionDraft{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// EncodeDraft flattens a draft into session fields with a type discriminator.
// A nil draft encodes to empty fields.
func EncodeDraft(d Draft) (session.Fields, error) {
	fields := session.Fields{}
	if d == nil {
		return fields, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	typ, _ := json.Marshal(string(d.Type()))
	fields[typeField] = typ
	return fields, nil
}

// DecodeDraft rebuilds a typed draft. Fields without a type decode to nil.
func DecodeDraft(fields session.Fields) (Draft, error) {
	rawType, ok := fields[typeField]
	if !ok {
		return nil, nil
	}
	var t string
	if err := json.Unmarshal(rawType, &t); err != nil {
		return nil, fmt.Errorf("decode draft type: %w", err)
	}
	d, err := NewDraft(applicants.Type(t))
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}

// Application converts a completed singer draft.
func (d *SingerDraft) Application(identity, username string) (applicants.SingerApplication, error) {
	profile, missing := d.profile(identity, username)
	if d.WorshipMinistryInvolved == nil {
		missing = append(missing, "worship_ministry_involved")
	}
	if d.AudioURL == nil || *d.AudioURL == "" {
		missing = append(missing, "audio_url")
	}
	if len(missing) > 0 {
		return applicants.SingerApplication{}, incomplete(missing)
	}
	details := applicants.SingerDetails{
		WorshipMinistryInvolved: *d.WorshipMinistryInvolved,
		AudioURL:                *d.AudioURL,
	}
	if d.AudioDuration != nil {
		details.AudioDuration = *d.AudioDuration
	}
	return applicants.SingerApplication{Profile: profile, Details: details}, nil
}

// Application converts a completed mission draft.
func (d *MissionDraft) Application(identity, username string) (applicants.MissionApplication, error) {
	profile, missing := d.profile(identity, username)
	if d.Profession == nil {
		missing = append(missing, "profession")
	}
	if d.MissionInterest == nil {
		missing = append(missing, "mission_interest")
	}
	if d.Bio == nil {
		missing = append(missing, "bio")
	}
	if d.Motivation == nil {
		missing = append(missing, "motivation")
	}
	if len(missing) > 0 {
		return applicants.MissionApplication{}, incomplete(missing)
	}
	return applicants.MissionApplication{
		Profile: profile,
		Details: applicants.MissionDetails{
			Profession:      *d.Profession,
			MissionInterest: *d.MissionInterest,
			Bio:             *d.Bio,
			Motivation:      *d.Motivation,
		},
	}, nil
}

func (c *Common) profile(identity, username string) (applicants.Profile, []string) {
	var missing []string
	p := applicants.Profile{TelegramID: identity, TelegramUsername: username}
	if c.Name == nil {
		missing = append(missing, "name")
	} else {
		p.Name = *c.Name
	}
	if c.Church == nil {
		missing = append(missing, "church")
	} else {
		p.Church = *c.Church
	}
	if c.Phone == nil {
		missing = append(missing, "phone")
	} else {
		p.Phone = *c.Phone
	}
	if c.Address == nil {
		missing = append(missing, "address")
	} else {
		p.Address = *c.Address
	}
	if c.PhotoURL != nil {
		p.PhotoURL = *c.PhotoURL
	}
	return p, missing
}

func incomplete(missing []string) error {
	return fmt.Errorf("%w: missing %s", ErrIncompleteDraft, strings.Join(missing, ", "))
}

func ptr[T any](v T) *T {
	return &v
}
