// Package applicants stores finalized registrations and their review state.
package applicants

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("applicant not found")
	ErrAlreadyReviewed = errors.New("applicant already reviewed")
	ErrInvalidStatus   = errors.New("invalid applicant status")
	ErrInvalidType     = errors.New("invalid applicant type")
)

// Type is the registration variant.
type Type string

const (
	TypeSinger  Type = "singer"
	TypeMission Type = "mission"
)

func (t Type) Valid() bool {
	return t == TypeSinger || t == TypeMission
}

// Status is the review state of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

// Applicant is a persisted application with its type-specific details.
type Applicant struct {
	ID               int64           `json:"id"`
	TelegramID       string          `json:"telegram_id"`
	TelegramUsername string          `json:"telegram_username,omitempty"`
	Type             Type            `json:"type"`
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	Church           string          `json:"church"`
	Address          string          `json:"address"`
	Status           Status          `json:"status"`
	PhotoURL         string          `json:"photo_url,omitempty"`
	ReviewerID       *int64          `json:"reviewer_id,omitempty"`
	ReviewerName     string          `json:"reviewer_name,omitempty"`
	ReviewerNotes    string          `json:"reviewer_notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Singer           *SingerDetails  `json:"singer_details,omitempty"`
	Mission          *MissionDetails `json:"mission_details,omitempty"`
}

type SingerDetails struct {
	WorshipMinistryInvolved bool   `json:"worship_ministry_involved"`
	AudioURL                string `json:"audio_url"`
	// AudioDuration is in whole seconds.
	AudioDuration int `json:"audio_duration"`
}

type MissionDetails struct {
	Profession      string `json:"profession"`
	MissionInterest bool   `json:"mission_interest"`
	Bio             string `json:"bio"`
	Motivation      string `json:"motivation"`
}

// Profile holds the fields shared by both application variants.
type Profile struct {
	TelegramID       string
	TelegramUsername string
	Name             string
	Phone            string
	Church           string
	Address          string
	PhotoURL         string
}

// SingerApplication is a complete singer registration ready to persist.
type SingerApplication struct {
	Profile
	Details SingerDetails
}

// MissionApplication is a complete mission registration ready to persist.
type MissionApplication struct {
	Profile
	Details MissionDetails
}

// Filter narrows List and Export.
type Filter struct {
	Type   Type
	Status Status
	// Search matches name, phone or church, case-insensitively.
	Search string
	Limit  int
	Offset int
}

type Page struct {
	Items  []Applicant `json:"applicants"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type Stats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Singers  int64 `json:"singers"`
	Missions int64 `json:"missions"`
}
