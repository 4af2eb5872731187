// Package domain contains entities without transport or lifecycle logic.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type (
	SessionID string
	RoomKey   string
)

const MaxTitleLen = 200

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusLive    Status = "live"
	StatusEnded   Status = "ended"
)

// Session is a bounded, named real-time meeting instance.
// All mutation goes through the registry; nothing here locks.
type Session struct {
	ID        SessionID `json:"id"`
	Title     string    `json:"title"`
	OwnerID   UserID    `json:"owner_id"`
	OwnerName string    `json:"owner_name"`
	RoomKey   RoomKey   `json:"room_key"`

	MaxParticipants int      `json:"max_participants"`
	Settings        Settings `json:"settings"`
	Status          Status   `json:"status"`

	Participants []Participant `json:"participants"`

	IsRecording        bool       `json:"is_recording"`
	RecordingStartedAt *time.Time `json:"recording_started_at,omitempty"`
	RecordingEndedAt   *time.Time `json:"recording_ended_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewSession assumes validated input; the registry rejects bad shapes first.
func NewSession(id SessionID, title string, ownerID UserID, ownerName string, max int, settings Settings) *Session {
	return &Session{
		ID:              id,
		Title:           title,
		OwnerID:         ownerID,
		OwnerName:       ownerName,
		RoomKey:         DeriveRoomKey(id),
		MaxParticipants: max,
		Settings:        DefaultSettings().Merge(settings),
		Status:          StatusWaiting,
		CreatedAt:       time.Now(),
	}
}

// DeriveRoomKey maps a session id to its relay room identifier.
// Deterministic and fixed-length so clients can treat it as opaque.
func DeriveRoomKey(id SessionID) RoomKey {
	sum := sha256.Sum256([]byte(id))
	return RoomKey(hex.EncodeToString(sum[:])[:12])
}

func (s *Session) Participant(uid UserID) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].UserID == uid {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

func (s *Session) RemoveParticipant(uid UserID) bool {
	for i := range s.Participants {
		if s.Participants[i].UserID == uid {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand outside the registry lock.
func (s *Session) Clone() Session {
	out := *s
	out.Settings = s.Settings.Clone()
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	return out
}
