package live

import (
	"fmt"
	"net/http"
	"time"
)

const sseWriteTimeout = 10 * time.Second

// ServeSSE streams live messages as Server-Sent Events. A comment line is
// written every keepAlive to keep proxies from closing idle streams.
func (h *Hub) ServeSSE(keepAlive time.Duration) http.HandlerFunc {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		deadlinesSupported := true

		write := func(format string, args ...any) error {
			if deadlinesSupported {
				if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
					deadlinesSupported = false
				}
			}
			if _, err := fmt.Fprintf(w, format, args...); err != nil {
				return err
			}
			return rc.Flush()
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		client := h.Subscribe()
		defer h.Unsubscribe(client)

		if err := write("data: %s\n\n", encode(Message{Type: TypeConnected, ClientID: client.ID})); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case data, ok := <-client.Send:
				if !ok {
					return
				}
				if err := write("data: %s\n\n", data); err != nil {
					return
				}
			case <-ticker.C:
				if err := write(": keepalive\n\n"); err != nil {
					return
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}
