package signal

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/core"
)

// handleChat delivers to the whole room, sender included, after flood
// control. The sender sees its own message echoed in room order.
func (ctl *Controller) handleChat(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	uid, _ := c.identity()
	if uid == "" || in.Room == "" {
		ctl.sendError(c, "attach first")
		return
	}
	if !ctl.limiter.Allow(uid) {
		log.Warn().Str("module", "signal").Str("user", string(uid)).Msg("chat rate limited")
		ctl.sendError(c, "slow down")
		return
	}
	p := in.Payload.(*core.ChatPayload)
	if p.SentAt.IsZero() {
		p.SentAt = time.Now()
	}
	res := ctl.Orch.Relay.Broadcast(in.Room, core.EventChat, uid, p)
	ctl.Orch.HandleDropped(res)
}

// relayToRoom forwards an already-decoded event to everyone in the room.
func (ctl *Controller) relayToRoom(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	uid, _ := c.identity()
	if uid == "" || in.Room == "" {
		ctl.sendError(c, "attach first")
		return
	}
	res := ctl.Orch.Relay.Broadcast(in.Room, in.Type, uid, json.RawMessage(in.Raw))
	ctl.Orch.HandleDropped(res)
}

// relayExceptSelf forwards to everyone but the sender; the origin already
// has the stroke on its own canvas.
func (ctl *Controller) relayExceptSelf(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	uid, _ := c.identity()
	if uid == "" || in.Room == "" {
		ctl.sendError(c, "attach first")
		return
	}
	res := ctl.Orch.Relay.BroadcastExceptSelf(in.Room, id, in.Type, uid, json.RawMessage(in.Raw))
	ctl.Orch.HandleDropped(res)
}
