package realtime

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// clientMessage is the frame clients send to join rooms.
type clientMessage struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Client events, named to match the browser protocol.
const (
	eventJoinTicket = "join_ticket"
	eventJoinUser   = "join_user"
)

// UpgradeRequired rejects plain HTTP requests on the websocket route.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler upgrades connections and services the room join protocol.
// Each connection gets a hub session; a writer goroutine drains the
// session outbox while the read loop handles join requests until the
// client disconnects.
func Handler(hub *Hub, logger *zap.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		session := hub.NewSession()
		defer session.Close()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for env := range session.Outbox() {
				if err := conn.WriteJSON(env); err != nil {
					logger.Debug("websocket write failed",
						zap.String("session_id", session.ID()),
						zap.Error(err))
					return
				}
			}
		}()

		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			switch msg.Event {
			case eventJoinTicket:
				if msg.Data != "" {
					session.Join(TicketRoom(msg.Data))
				}
			case eventJoinUser:
				if msg.Data != "" {
					session.Join(UserRoom(msg.Data))
				}
			default:
				logger.Debug("unknown websocket event",
					zap.String("session_id", session.ID()),
					zap.String("event", msg.Event))
			}
		}

		session.Close()
		<-writerDone
	})
}
