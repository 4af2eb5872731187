package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
	"github.com/classline/classline/internal/media"
)

type RecordingAction string

const (
	RecordingStart RecordingAction = "start"
	RecordingStop  RecordingAction = "stop"
)

// Options tune the registry lifecycle rules.
type Options struct {
	// CloseGrace is how long an empty session stays live before the
	// auto-close fires. A rejoin within the window cancels it.
	CloseGrace time.Duration
	// KeepAlive disables the empty-roster auto-close entirely.
	KeepAlive bool
	// EndedRetention is how long an ended session remains readable (as a
	// tombstone) before it is evicted from the map.
	EndedRetention time.Duration
}

const (
	defaultCloseGrace     = 30 * time.Second
	defaultEndedRetention = 5 * time.Minute
)

// Registry is the in-memory store of sessions. The top-level map has its
// own short-held lock; every session carries its own mutex, so operations
// on independent sessions never contend.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*liveSession
	byRoom   map[domain.RoomKey]domain.SessionID

	issuer *media.Issuer
	opts   Options

	// onEnded fires outside all locks whenever a session reaches its
	// terminal state, via End or the auto-close rule.
	onEnded func(domain.Session)
}

func NewRegistry(issuer *media.Issuer, opts Options) *Registry {
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = defaultCloseGrace
	}
	if opts.EndedRetention <= 0 {
		opts.EndedRetention = defaultEndedRetention
	}
	return &Registry{
		sessions: make(map[domain.SessionID]*liveSession),
		byRoom:   make(map[domain.RoomKey]domain.SessionID),
		issuer:   issuer,
		opts:     opts,
	}
}

func (r *Registry) SetOnEnded(fn func(domain.Session)) { r.onEnded = fn }

func (r *Registry) Create(title string, ownerID domain.UserID, ownerName string, max int, settings domain.Settings) (domain.Session, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return domain.Session{}, fmt.Errorf("%w: title required", core.ErrValidation)
	case len(title) > domain.MaxTitleLen:
		return domain.Session{}, fmt.Errorf("%w: title too long", core.ErrValidation)
	case ownerID == "":
		return domain.Session{}, fmt.Errorf("%w: owner id required", core.ErrValidation)
	case max <= 0:
		return domain.Session{}, fmt.Errorf("%w: max participants must be positive", core.ErrValidation)
	}

	s := domain.NewSession(domain.SessionID(uuid.NewString()), title, ownerID, ownerName, max, settings)
	ls := &liveSession{s: s}

	r.mu.Lock()
	r.sessions[s.ID] = ls
	r.byRoom[s.RoomKey] = s.ID
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").
		Str("session", string(s.ID)).Str("room", string(s.RoomKey)).
		Str("owner", string(ownerID)).Int("max", max).Msg("session created")
	return s.Clone(), nil
}

func (r *Registry) Join(id domain.SessionID, uid domain.UserID, name string, role domain.Role) (domain.Session, domain.Participant, media.Credential, error) {
	if uid == "" {
		return domain.Session{}, domain.Participant{}, media.Credential{}, fmt.Errorf("%w: user id required", core.ErrValidation)
	}
	ls, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, domain.Participant{}, media.Credential{}, core.ErrNotFound
	}
	snap, p, err := ls.join(uid, name, role)
	if err != nil {
		return domain.Session{}, domain.Participant{}, media.Credential{}, err
	}

	// Credential minting is pure computation, but it stays outside the
	// session lock: no registry operation blocks on anything but its map.
	cred, err := r.issuer.Issue(snap.RoomKey, uid, p.Role, 0)
	if err != nil {
		// Feature-level degradation: the roster mutation stands, the
		// client just gets no media credential.
		log.Warn().Err(err).Str("module", "app.registry").
			Str("session", string(id)).Msg("credential unavailable")
		cred = media.Credential{}
	}
	return snap, p, cred, nil
}

func (r *Registry) Leave(id domain.SessionID, uid domain.UserID) (domain.Session, error) {
	ls, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, core.ErrNotFound
	}
	snap, schedule, err := ls.leave(uid)
	if err != nil {
		return domain.Session{}, err
	}
	if schedule {
		r.scheduleClose(ls)
	}
	return snap, nil
}

func (r *Registry) ToggleRecording(id domain.SessionID, uid domain.UserID, action RecordingAction) (domain.Session, error) {
	if action != RecordingStart && action != RecordingStop {
		return domain.Session{}, fmt.Errorf("%w: action must be start or stop", core.ErrValidation)
	}
	ls, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, core.ErrNotFound
	}
	return ls.toggleRecording(uid, action)
}

func (r *Registry) UpdateSettings(id domain.SessionID, patch domain.Settings) (domain.Session, error) {
	ls, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, core.ErrNotFound
	}
	return ls.updateSettings(patch)
}

// End forces the terminal state. Idempotent: ending an ended session
// returns its snapshot without error.
func (r *Registry) End(id domain.SessionID) (domain.Session, error) {
	ls, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, core.ErrNotFound
	}
	snap, changed := ls.end()
	if changed {
		r.retire(snap)
	}
	return snap, nil
}

func (r *Registry) Get(id domain.SessionID) (domain.Session, error) {
	ls, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, core.ErrNotFound
	}
	snap := ls.snapshot()
	if snap.Status == domain.StatusEnded {
		return domain.Session{}, core.ErrSessionEnded
	}
	return snap, nil
}

// List returns snapshots of every non-ended session.
func (r *Registry) List() []domain.Session {
	r.mu.RLock()
	all := make([]*liveSession, 0, len(r.sessions))
	for _, ls := range r.sessions {
		all = append(all, ls)
	}
	r.mu.RUnlock()

	out := make([]domain.Session, 0, len(all))
	for _, ls := range all {
		snap := ls.snapshot()
		if snap.Status != domain.StatusEnded {
			out = append(out, snap)
		}
	}
	return out
}

// ByRoomKey resolves the live session occupying a relay room.
func (r *Registry) ByRoomKey(key domain.RoomKey) (domain.Session, error) {
	r.mu.RLock()
	id, ok := r.byRoom[key]
	r.mu.RUnlock()
	if !ok {
		return domain.Session{}, core.ErrNotFound
	}
	return r.Get(id)
}

func (r *Registry) lookup(id domain.SessionID) (*liveSession, bool) {
	r.mu.RLock()
	ls, ok := r.sessions[id]
	r.mu.RUnlock()
	return ls, ok
}

// scheduleClose arms the grace timer for an empty session. The timer
// re-checks the roster under the session lock when it fires, so a rejoin
// in the window wins the race.
func (r *Registry) scheduleClose(ls *liveSession) {
	if r.opts.KeepAlive {
		return
	}
	id := ls.id()
	ls.armCloser(time.AfterFunc(r.opts.CloseGrace, func() {
		snap, closed := ls.endIfEmpty()
		if !closed {
			return
		}
		log.Info().Str("module", "app.registry").
			Str("session", string(id)).Msg("auto-closed empty session")
		r.retire(snap)
	}))
	log.Debug().Str("module", "app.registry").
		Str("session", string(id)).Dur("grace", r.opts.CloseGrace).Msg("close scheduled")
}

// retire drops the room index at end time and evicts the tombstone after
// the retention window. Runs outside the session lock.
func (r *Registry) retire(snap domain.Session) {
	r.mu.Lock()
	delete(r.byRoom, snap.RoomKey)
	r.mu.Unlock()

	time.AfterFunc(r.opts.EndedRetention, func() {
		r.mu.Lock()
		delete(r.sessions, snap.ID)
		r.mu.Unlock()
	})

	if r.onEnded != nil {
		r.onEnded(snap)
	}
	log.Info().Str("module", "app.registry").
		Str("session", string(snap.ID)).Msg("session ended")
}
