package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/fuomag9/kabomba-status/internal/logger"
)

// TokenValidator checks a bearer token and returns the user it belongs to.
type TokenValidator func(token string) (userID string, err error)

const wsWriteTimeout = 10 * time.Second

// ServeWS upgrades authenticated requests to a WebSocket carrying the same
// messages as the SSE stream. The token comes from ?token= or the
// Authorization header.
func (h *Hub) ServeWS(validate TokenValidator, allowedOrigins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		userID, err := validate(token)
		if token == "" || err != nil {
			logger.WithFields(logrus.Fields{"remote": r.RemoteAddr}).Debug("websocket connection rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns(allowedOrigins)})
		if err != nil {
			logger.Log().WithError(err).Debug("websocket upgrade failed")
			return
		}
		defer conn.CloseNow()

		client := h.Subscribe()
		defer h.Unsubscribe(client)
		logger.WithFields(logrus.Fields{"client_id": client.ID, "user_id": userID}).Debug("websocket client authenticated")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		pongs := make(chan []byte, 1)
		go readPump(ctx, cancel, conn, pongs)

		if err := writeMessage(ctx, conn, encode(Message{Type: TypeConnected, ClientID: client.ID})); err != nil {
			return
		}

		for {
			select {
			case data, ok := <-client.Send:
				if !ok {
					conn.Close(websocket.StatusTryAgainLater, "client too slow")
					return
				}
				if err := writeMessage(ctx, conn, data); err != nil {
					return
				}
			case data := <-pongs:
				if err := writeMessage(ctx, conn, data); err != nil {
					return
				}
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

// readPump answers {"type":"ping"} and cancels ctx when the peer goes away.
func readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, pongs chan<- []byte) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				status != websocket.StatusNoStatusRcvd && !errors.Is(err, context.Canceled) {
				logger.Log().WithError(err).Debug("websocket read error")
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			select {
			case pongs <- encode(Message{Type: TypePong}):
			default:
			}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// originPatterns converts configured origins (with scheme) into host
// patterns accepted by websocket.AcceptOptions.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
