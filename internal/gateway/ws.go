package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
)

// handleJournalTail streams journal entries over a WebSocket as they are
// written. Slow readers are dropped by the store's subscription buffer,
// not buffered without bound.
func (s *Server) handleJournalTail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		entries, cancel := s.store.Subscribe(64)
		defer cancel()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "client gone")
				return
			case entry, ok := <-entries:
				if !ok {
					_ = conn.Close(websocket.StatusNormalClosure, "store closed")
					return
				}
				data, err := json.Marshal(entry)
				if err != nil {
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					return
				}
			}
		}
	}
}
