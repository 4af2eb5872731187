// Package orch composes the registry, relay and credential issuer into the
// client-facing signaling operations. Every mutating call updates the
// registry to completion first, then emits the matching relay event; the
// two effects are deliberately not transactional, a missed advisory event
// never rolls back state.
package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/app"
	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
	"github.com/classline/classline/internal/media"
)

type Orchestrator struct {
	Registry *app.Registry
	Relay    *app.Relay
	Issuer   *media.Issuer
	Policy   app.Policy
}

// New wires the facade and hooks the registry's terminal transitions to
// the relay so attached clients learn when their room dies.
func New(reg *app.Registry, relay *app.Relay, issuer *media.Issuer, policy app.Policy) *Orchestrator {
	o := &Orchestrator{Registry: reg, Relay: relay, Issuer: issuer, Policy: policy}
	reg.SetOnEnded(o.onSessionEnded)
	return o
}

type CreateInput struct {
	Title           string
	OwnerID         domain.UserID
	OwnerName       string
	MaxParticipants int
	Settings        domain.Settings
}

func (o *Orchestrator) CreateSession(in CreateInput) (core.SessionSummary, error) {
	s, err := o.Registry.Create(in.Title, in.OwnerID, in.OwnerName, in.MaxParticipants, in.Settings)
	if err != nil {
		return core.SessionSummary{}, err
	}
	return core.Summarize(s), nil
}

type JoinResult struct {
	Summary     core.SessionSummary
	Participant domain.Participant
	Credential  media.Credential
	RoomKey     domain.RoomKey
}

func (o *Orchestrator) JoinSession(id domain.SessionID, uid domain.UserID, name string, role domain.Role) (JoinResult, error) {
	s, p, cred, err := o.Registry.Join(id, uid, name, role)
	if err != nil {
		return JoinResult{}, err
	}
	// The joiner has not attached its socket yet, so a plain room
	// broadcast reaches exactly the others.
	o.emit(s.RoomKey, core.EventJoined, p.UserID, core.PresencePayload{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		Count:       len(s.Participants),
	})
	return JoinResult{
		Summary:     core.Summarize(s),
		Participant: p,
		Credential:  cred,
		RoomKey:     s.RoomKey,
	}, nil
}

func (o *Orchestrator) LeaveSession(id domain.SessionID, uid domain.UserID) (core.SessionSummary, error) {
	s, err := o.Registry.Leave(id, uid)
	if err != nil {
		return core.SessionSummary{}, err
	}
	o.emit(s.RoomKey, core.EventLeft, uid, core.PresencePayload{
		UserID: uid,
		Count:  len(s.Participants),
	})
	return core.Summarize(s), nil
}

func (o *Orchestrator) EndSession(id domain.SessionID) error {
	_, err := o.Registry.End(id)
	return err
}

// onSessionEnded fires on explicit End and on the empty-roster auto-close.
func (o *Orchestrator) onSessionEnded(s domain.Session) {
	o.emit(s.RoomKey, core.EventSessionEnded, "", nil)
	o.Relay.DropRoom(s.RoomKey)
}

// emit fans an advisory event out and applies the backpressure policy to
// any connection that could not take it.
func (o *Orchestrator) emit(key domain.RoomKey, t core.EventType, from domain.UserID, payload any) {
	res := o.Relay.Broadcast(key, t, from, payload)
	o.HandleDropped(res)
}

// HandleDropped applies the policy verdict for each dropped recipient.
func (o *Orchestrator) HandleDropped(res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, id := range res.Dropped {
		switch o.Policy.OnBackpressure(id) {
		case app.Disconnect:
			log.Warn().Str("module", "app.orch").
				Str("conn", string(id)).Msg("disconnecting slow consumer")
			o.Relay.Deregister(id)
		case app.DropFrame, app.NoAction:
		}
	}
}
