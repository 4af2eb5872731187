package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/classline/classline/internal/domain"
)

// EventType is the closed taxonomy of signaling events. The relay is
// agnostic to payload shape; payloads are decoded exactly once at the
// socket boundary and forwarded as-is afterwards.
type EventType string

const (
	// room presence, emitted by the facade
	EventJoined EventType = "joined"
	EventLeft   EventType = "left"

	// media negotiation, opaque blobs forwarded verbatim
	EventOffer     EventType = "offer"
	EventAnswer    EventType = "answer"
	EventCandidate EventType = "candidate"

	// classroom events
	EventChat             EventType = "chat"
	EventStroke           EventType = "stroke"
	EventFileShared       EventType = "file_shared"
	EventPollCreated      EventType = "poll_created"
	EventPollVoted        EventType = "poll_voted"
	EventAttendanceJoined EventType = "attendance_joined"
	EventAttendanceLeft   EventType = "attendance_left"
	EventBreakoutJoined   EventType = "breakout_joined"
	EventBreakoutLeft     EventType = "breakout_left"

	// facade advisories
	EventRecordingStarted EventType = "recording_started"
	EventRecordingStopped EventType = "recording_stopped"
	EventSettingsUpdated  EventType = "settings_updated"
	EventSessionEnded     EventType = "session_ended"

	// transport control
	EventAttach   EventType = "attach"
	EventDetach   EventType = "detach"
	EventAttached EventType = "attached"
	EventDetached EventType = "detached"
	EventPing     EventType = "ping"
	EventPong     EventType = "pong"
	EventError    EventType = "error"
)

// Envelope is the outbound wire shape for every relay event.
type Envelope struct {
	Type EventType       `json:"type"`
	From domain.UserID   `json:"from,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalEvent builds a wire frame from a typed payload. Payloads that are
// already raw (negotiation blobs) pass through without re-encoding.
func MarshalEvent(t EventType, from domain.UserID, payload any) (Frame, error) {
	env := Envelope{Type: t, From: from}
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		env.Data = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Typed payloads per variant.

type PresencePayload struct {
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
	Role        domain.Role   `json:"role"`
	Count       int           `json:"count"`
}

type ChatPayload struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type StrokePayload struct {
	Tool   string        `json:"tool"`
	Color  string        `json:"color"`
	Width  float64       `json:"width"`
	Points []StrokePoint `json:"points"`
}

type FileSharedPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type PollCreatedPayload struct {
	PollID   string   `json:"poll_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type PollVotedPayload struct {
	PollID string `json:"poll_id"`
	Option string `json:"option"`
}

type AttachPayload struct {
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
}

type BreakoutPayload struct {
	Room domain.RoomKey `json:"room"`
}

type RecordingPayload struct {
	By domain.UserID `json:"by"`
	At time.Time     `json:"at"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Inbound is one decoded client message. Raw keeps the original data blob
// so negotiation payloads can be relayed verbatim, never inspected.
type Inbound struct {
	Type    EventType
	Room    domain.RoomKey
	To      ConnID
	Payload any
	Raw     json.RawMessage
}

type inboundWire struct {
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	To   string          `json:"to,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeInbound parses a client frame into its typed variant. Unknown types
// are rejected here so downstream code never dispatches on raw strings.
func DecodeInbound(raw []byte) (*Inbound, error) {
	var w inboundWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	in := &Inbound{
		Type: EventType(w.Type),
		Room: domain.RoomKey(w.Room),
		To:   ConnID(w.To),
		Raw:  w.Data,
	}
	switch in.Type {
	case EventDetach, EventPing,
		EventAttendanceJoined, EventAttendanceLeft:
		// control frames and bare presence markers carry no payload
		return in, nil
	case EventAttach:
		if len(w.Data) > 0 {
			return in, decodeInto(in, &AttachPayload{})
		}
		return in, nil
	case EventOffer, EventAnswer, EventCandidate:
		// opaque, forwarded verbatim
		if len(w.Data) == 0 {
			return nil, fmt.Errorf("decode %s: %w", in.Type, errEmptyPayload)
		}
		return in, nil
	case EventChat:
		return in, decodeInto(in, &ChatPayload{})
	case EventStroke:
		return in, decodeInto(in, &StrokePayload{})
	case EventFileShared:
		return in, decodeInto(in, &FileSharedPayload{})
	case EventPollCreated:
		return in, decodeInto(in, &PollCreatedPayload{})
	case EventPollVoted:
		return in, decodeInto(in, &PollVotedPayload{})
	case EventBreakoutJoined, EventBreakoutLeft:
		return in, decodeInto(in, &BreakoutPayload{})
	}
	return nil, fmt.Errorf("unknown event type %q", w.Type)
}

var errEmptyPayload = fmt.Errorf("empty payload")

func decodeInto(in *Inbound, dst any) error {
	if len(in.Raw) == 0 {
		return fmt.Errorf("decode %s: %w", in.Type, errEmptyPayload)
	}
	if err := json.Unmarshal(in.Raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", in.Type, err)
	}
	in.Payload = dst
	return nil
}
