package signal

import (
	"encoding/json"

	"github.com/classline/classline/internal/core"
)

// relayNegotiation forwards offer/answer/candidate blobs verbatim. The
// payload is never inspected here; codec negotiation belongs to the peers
// and the media transport. A `to` field unicasts to one connection,
// otherwise the blob goes to everyone else in the room.
func (ctl *Controller) relayNegotiation(id core.ConnID, c *wsSignalConn, in *core.Inbound) {
	uid, _ := c.identity()
	if uid == "" {
		ctl.sendError(c, "attach first")
		return
	}
	if in.To != "" {
		_ = ctl.Orch.Relay.Unicast(in.To, in.Type, uid, json.RawMessage(in.Raw))
		return
	}
	if in.Room == "" {
		ctl.sendError(c, "room or to required")
		return
	}
	res := ctl.Orch.Relay.BroadcastExceptSelf(in.Room, id, in.Type, uid, json.RawMessage(in.Raw))
	ctl.Orch.HandleDropped(res)
}
