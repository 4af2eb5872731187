package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
)

// liveSession guards one session with its own mutex. Every read-then-write
// (capacity check + insert, empty check + close) happens atomically under
// it. Nothing here touches the registry map or any I/O.
type liveSession struct {
	mu sync.Mutex
	s  *domain.Session

	// everJoined marks that the roster has been non-empty at least once;
	// only then does an empty roster trigger the auto-close rule.
	everJoined bool
	closer     *time.Timer
}

func (ls *liveSession) id() domain.SessionID {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.s.ID
}

func (ls *liveSession) snapshot() domain.Session {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.s.Clone()
}

// join admits or re-admits one user. Idempotent: an existing entry is
// returned unchanged, never duplicated.
func (ls *liveSession) join(uid domain.UserID, name string, role domain.Role) (domain.Session, domain.Participant, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.s.Status == domain.StatusEnded {
		return domain.Session{}, domain.Participant{}, core.ErrSessionEnded
	}
	if p, ok := ls.s.Participant(uid); ok {
		ls.cancelCloserLocked()
		return ls.s.Clone(), *p, nil
	}
	if len(ls.s.Participants) >= ls.s.MaxParticipants {
		return domain.Session{}, domain.Participant{}, core.ErrCapacity
	}

	p := domain.NewParticipant(uid, name, role)
	ls.s.Participants = append(ls.s.Participants, p)
	ls.everJoined = true
	ls.cancelCloserLocked()

	if ls.s.Status == domain.StatusWaiting {
		now := time.Now()
		ls.s.Status = domain.StatusLive
		ls.s.StartedAt = &now
	}
	log.Info().Str("module", "app.session").
		Str("session", string(ls.s.ID)).Str("user", string(uid)).
		Int("count", len(ls.s.Participants)).Msg("participant joined")
	return ls.s.Clone(), p, nil
}

// leave removes the user if present; absence is a no-op so duplicate leave
// signals from flaky connections stay harmless. The second return reports
// whether the roster just emptied and a close should be scheduled.
func (ls *liveSession) leave(uid domain.UserID) (domain.Session, bool, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.s.Status == domain.StatusEnded {
		return domain.Session{}, false, core.ErrSessionEnded
	}
	if ls.s.RemoveParticipant(uid) {
		log.Info().Str("module", "app.session").
			Str("session", string(ls.s.ID)).Str("user", string(uid)).
			Int("count", len(ls.s.Participants)).Msg("participant left")
	}
	empty := ls.everJoined && len(ls.s.Participants) == 0 && ls.closer == nil
	return ls.s.Clone(), empty, nil
}

func (ls *liveSession) toggleRecording(uid domain.UserID, action RecordingAction) (domain.Session, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.s.Status == domain.StatusEnded {
		return domain.Session{}, core.ErrSessionEnded
	}
	p, ok := ls.s.Participant(uid)
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", core.ErrNotInSession, uid)
	}

	now := time.Now()
	switch action {
	case RecordingStart:
		if !ls.s.IsRecording {
			ls.s.IsRecording = true
			ls.s.RecordingStartedAt = &now
			ls.s.RecordingEndedAt = nil
		}
		p.IsRecording = true
	case RecordingStop:
		if ls.s.IsRecording {
			ls.s.IsRecording = false
			ls.s.RecordingEndedAt = &now
		}
		p.IsRecording = false
	}
	return ls.s.Clone(), nil
}

func (ls *liveSession) updateSettings(patch domain.Settings) (domain.Session, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.s.Status == domain.StatusEnded {
		return domain.Session{}, core.ErrSessionEnded
	}
	ls.s.Settings.Merge(patch)
	return ls.s.Clone(), nil
}

// end transitions to the terminal state. The second return is false when
// the session had already ended.
func (ls *liveSession) end() (domain.Session, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.s.Status == domain.StatusEnded {
		return ls.s.Clone(), false
	}
	ls.endLocked()
	return ls.s.Clone(), true
}

// endIfEmpty is the grace-timer callback body: close only if nobody
// rejoined while the timer was pending.
func (ls *liveSession) endIfEmpty() (domain.Session, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.closer = nil
	if ls.s.Status == domain.StatusEnded || len(ls.s.Participants) > 0 {
		return domain.Session{}, false
	}
	ls.endLocked()
	return ls.s.Clone(), true
}

func (ls *liveSession) endLocked() {
	now := time.Now()
	ls.s.Status = domain.StatusEnded
	ls.s.EndedAt = &now
	ls.s.Participants = nil
	if ls.s.IsRecording {
		ls.s.IsRecording = false
		ls.s.RecordingEndedAt = &now
	}
	ls.cancelCloserLocked()
}

func (ls *liveSession) armCloser(t *time.Timer) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	// a session that ended or refilled between leave and here must not
	// keep a live timer around
	if ls.s.Status == domain.StatusEnded || len(ls.s.Participants) > 0 {
		t.Stop()
		return
	}
	ls.cancelCloserLocked()
	ls.closer = t
}

func (ls *liveSession) cancelCloserLocked() {
	if ls.closer != nil {
		ls.closer.Stop()
		ls.closer = nil
	}
}
