package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/core"
)

// handleAttach puts the connection into a relay room. The room must hold a
// live session and the caller must already be on its roster; joining the
// roster itself is the facade's job, not the socket's.
func (ctl *Controller) handleAttach(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	if in.Room == "" {
		ctl.sendError(c, "room required")
		return
	}
	p, ok := in.Payload.(*core.AttachPayload)
	if !ok || p.UserID == "" {
		ctl.sendError(c, "user_id required")
		return
	}

	s, err := ctl.Orch.Registry.ByRoomKey(in.Room)
	if err != nil {
		ctl.sendError(c, "no live session for room")
		return
	}
	if _, ok := s.Participant(p.UserID); !ok {
		ctl.sendError(c, "join the session first")
		return
	}

	c.setIdentity(p.UserID, p.DisplayName)
	ctl.Orch.Relay.Attach(in.Room, id)
	log.Info().Str("module", "signal").
		Str("conn", string(id)).Str("room", string(in.Room)).
		Str("user", string(p.UserID)).Msg("attached to room")
	ctl.sendEvent(c, core.EventAttached, core.BreakoutPayload{Room: in.Room})
}

func (ctl *Controller) handleDetach(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	if in.Room == "" {
		ctl.sendError(c, "room required")
		return
	}
	ctl.Orch.Relay.Detach(in.Room, id)
	ctl.sendEvent(c, core.EventDetached, core.BreakoutPayload{Room: in.Room})
}

// handleBreakoutJoin attaches the connection to a breakout room nested
// inside the main one. Main-room membership is untouched, so events keep
// flowing on both keys.
func (ctl *Controller) handleBreakoutJoin(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	p, ok := in.Payload.(*core.BreakoutPayload)
	if !ok || p.Room == "" || in.Room == "" {
		ctl.sendError(c, "room and breakout room required")
		return
	}
	if !ctl.Orch.Relay.Attach(p.Room, id) {
		ctl.sendError(c, "not connected")
		return
	}
	uid, _ := c.identity()
	res := ctl.Orch.Relay.BroadcastExceptSelf(in.Room, id, core.EventBreakoutJoined, uid, p)
	ctl.Orch.HandleDropped(res)
}

func (ctl *Controller) handleBreakoutLeave(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	p, ok := in.Payload.(*core.BreakoutPayload)
	if !ok || p.Room == "" || in.Room == "" {
		ctl.sendError(c, "room and breakout room required")
		return
	}
	ctl.Orch.Relay.Detach(p.Room, id)
	uid, _ := c.identity()
	res := ctl.Orch.Relay.BroadcastExceptSelf(in.Room, id, core.EventBreakoutLeft, uid, p)
	ctl.Orch.HandleDropped(res)
}
