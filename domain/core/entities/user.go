package entities

import "time"

// ContentFormat and Pace are the closed preference enums
type ContentFormat string

const (
	ContentFormatText        ContentFormat = "text"
	ContentFormatVideo       ContentFormat = "video"
	ContentFormatInteractive ContentFormat = "interactive"
)

type Pace string

const (
	PaceSlow     Pace = "slow"
	PaceModerate Pace = "moderate"
	PaceFast     Pace = "fast"
)

// LearningPreferences shape how plans are presented to a user
type LearningPreferences struct {
	ContentFormat ContentFormat `json:"contentFormat" validate:"omitempty,oneof=text video interactive"`
	Pace          Pace          `json:"pace" validate:"omitempty,oneof=slow moderate fast"`
}

// UserProfile is the root document at users/{userId}. It is written by the
// signup flow; this service only reads it.
type UserProfile struct {
	UserID              string              `json:"userId" validate:"required"`
	DisplayName         string              `json:"displayName"`
	Email               string              `json:"email" validate:"omitempty,email"`
	LearningPreferences LearningPreferences `json:"learningPreferences"`
	CreatedAt           time.Time           `json:"createdAt"`
}
