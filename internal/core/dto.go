package core

import (
	"time"

	"github.com/classline/classline/internal/domain"
)

// SessionSummary is the public read-only view of a session. It never
// carries the roster's credentials or transport fields.
type SessionSummary struct {
	ID              domain.SessionID `json:"id"`
	Title           string           `json:"title"`
	RoomKey         domain.RoomKey   `json:"room_key"`
	OwnerName       string           `json:"owner_name"`
	Status          domain.Status    `json:"status"`
	MaxParticipants int              `json:"max_participants"`
	Participants    int              `json:"participants"`
	Settings        domain.Settings  `json:"settings"`
	IsRecording     bool             `json:"is_recording"`
	CreatedAt       time.Time        `json:"created_at"`
}

func Summarize(s domain.Session) SessionSummary {
	return SessionSummary{
		ID:              s.ID,
		Title:           s.Title,
		RoomKey:         s.RoomKey,
		OwnerName:       s.OwnerName,
		Status:          s.Status,
		MaxParticipants: s.MaxParticipants,
		Participants:    len(s.Participants),
		Settings:        s.Settings,
		IsRecording:     s.IsRecording,
		CreatedAt:       s.CreatedAt,
	}
}
