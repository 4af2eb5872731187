package domain

import (
	"errors"
	"time"
)

const (
	MaxUserIDLen      = 36
	MaxDisplayNameLen = 36
)

var ErrUnknownRole = errors.New("unknown role")

type UserID string

type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleInstructor, RoleStudent:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// Participant is owned exclusively by its Session.
// The media flags are advisory, last-reported client state.
type Participant struct {
	UserID      UserID    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`

	AudioEnabled    bool `json:"audio_enabled"`
	VideoEnabled    bool `json:"video_enabled"`
	IsScreenSharing bool `json:"is_screen_sharing"`
	IsRecording     bool `json:"is_recording"`
}

func NewParticipant(uid UserID, name string, role Role) Participant {
	return Participant{
		UserID:       uid,
		DisplayName:  name,
		Role:         role,
		JoinedAt:     time.Now(),
		AudioEnabled: true,
		VideoEnabled: true,
	}
}
