package server

import (
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleEventStream upgrades to a websocket and streams engine and
// pipeline events as JSON until the client disconnects. Slow clients miss
// events rather than stall the emitters.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is enforced by the router middleware
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := s.events.Subscribe()
	defer cancel()

	s.log.Debug().Msg("Event stream subscriber connected")
	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				s.log.Debug().Err(err).Msg("Event stream subscriber disconnected")
				return
			}
		}
	}
}
