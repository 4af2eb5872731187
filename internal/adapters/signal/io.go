package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/core"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, id core.ConnID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(id, c, data)
		}
	}
}

// handleFrame is the single decode point: every inbound frame becomes a
// typed variant here, and the relay below never inspects payloads again.
func (ctl *Controller) handleFrame(id core.ConnID, c *wsSignalConn, data []byte) {
	in, err := core.DecodeInbound(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad frame")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch in.Type {
	case core.EventPing:
		ctl.sendEvent(c, core.EventPong, nil)
	case core.EventAttach:
		ctl.handleAttach(id, c, in)
	case core.EventDetach:
		ctl.handleDetach(id, c, in)
	case core.EventBreakoutJoined:
		ctl.handleBreakoutJoin(id, c, in)
	case core.EventBreakoutLeft:
		ctl.handleBreakoutLeave(id, c, in)
	case core.EventChat:
		ctl.handleChat(id, c, in)
	case core.EventStroke:
		ctl.relayExceptSelf(id, c, in)
	case core.EventFileShared, core.EventPollCreated, core.EventPollVoted,
		core.EventAttendanceJoined, core.EventAttendanceLeft:
		ctl.relayToRoom(id, c, in)
	case core.EventOffer, core.EventAnswer, core.EventCandidate:
		ctl.relayNegotiation(id, c, in)
	default:
		// server-emitted types (joined, session_ended, ...) are not
		// accepted from clients
		ctl.sendError(c, "unsupported event")
	}
}
