package orch

import (
	"time"

	"github.com/classline/classline/internal/app"
	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
	"github.com/classline/classline/internal/media"
)

func (o *Orchestrator) GetSessionSummary(id domain.SessionID) (core.SessionSummary, error) {
	s, err := o.Registry.Get(id)
	if err != nil {
		return core.SessionSummary{}, err
	}
	return core.Summarize(s), nil
}

func (o *Orchestrator) ListSessions() []core.SessionSummary {
	sessions := o.Registry.List()
	out := make([]core.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, core.Summarize(s))
	}
	return out
}

func (o *Orchestrator) UpdateSessionSettings(id domain.SessionID, patch domain.Settings) (core.SessionSummary, error) {
	s, err := o.Registry.UpdateSettings(id, patch)
	if err != nil {
		return core.SessionSummary{}, err
	}
	o.emit(s.RoomKey, core.EventSettingsUpdated, "", s.Settings)
	return core.Summarize(s), nil
}

func (o *Orchestrator) ControlRecording(id domain.SessionID, uid domain.UserID, action app.RecordingAction) (core.SessionSummary, error) {
	s, err := o.Registry.ToggleRecording(id, uid, action)
	if err != nil {
		return core.SessionSummary{}, err
	}
	t := core.EventRecordingStarted
	if action == app.RecordingStop {
		t = core.EventRecordingStopped
	}
	o.emit(s.RoomKey, t, uid, core.RecordingPayload{By: uid, At: time.Now()})
	return core.Summarize(s), nil
}

// IssueToken is the standalone mint path for credential refresh near
// expiry; it never touches the roster. The room must still hold a live
// session so ended rooms cannot be reentered through the media transport.
func (o *Orchestrator) IssueToken(key domain.RoomKey, uid domain.UserID, role domain.Role) (media.Credential, error) {
	if _, err := o.Registry.ByRoomKey(key); err != nil {
		return media.Credential{}, err
	}
	return o.Issuer.Issue(key, uid, role, 0)
}
