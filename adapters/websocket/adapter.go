package websocket

import (
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"boardkit/realtime"
)

const writeWait = 5 * time.Second

// Handler returns an http.Handler that upgrades to WebSocket and streams events
// from the hub. The optional board query parameter limits the stream to one board.
func Handler(hub *realtime.Hub) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		board := r.URL.Query().Get("board")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(board, 256)
		defer hub.Unsubscribe(id)

		// the stream is one-way; reading only detects the client going away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					_ = conn.WriteControl(gorillaws.CloseMessage,
						gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, ""), time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
}
