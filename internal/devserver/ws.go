package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatgogo/client/internal/api"
	"chatgogo/client/internal/models"
)

const (
	writeWait = 10 * time.Second
	readWait  = 60 * time.Second
	kaPeriod  = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{"graphql-ws"},
	// Fixture: any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscriber is one websocket connection with at most one running
// newMessage operation.
type subscriber struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	userID int64
	opID   string
	roomID int64
}

func (sub *subscriber) writeFrame(f api.WSFrame) error {
	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sub.conn.WriteJSON(f)
}

func (s *Server) handleSubscriptions(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	go s.serveConn(conn)
}

func (s *Server) addSubscriber(sub *subscriber) {
	s.subMu.Lock()
	s.subs[sub] = true
	s.subMu.Unlock()
}

func (s *Server) dropSubscriber(sub *subscriber) {
	s.subMu.Lock()
	delete(s.subs, sub)
	s.subMu.Unlock()
}

// SubscriberCount reports how many subscriptions are running. The start frame
// is processed asynchronously, so tests wait on this before injecting.
func (s *Server) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// serveConn drives the graphql-ws handshake and operation lifecycle for one
// connection.
func (s *Server) serveConn(conn *websocket.Conn) {
	sub := &subscriber{conn: conn}
	done := make(chan struct{})
	defer func() {
		close(done)
		s.dropSubscriber(sub)
		conn.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readWait))
		var frame api.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case api.FrameConnectionInit:
			var payload struct {
				Token string `json:"token"`
			}
			if len(frame.Payload) > 0 {
				json.Unmarshal(frame.Payload, &payload)
			}
			userID, ok := s.userIDFromToken(payload.Token)
			if !ok {
				msg, _ := json.Marshal(gin.H{"message": "invalid token"})
				sub.writeFrame(api.WSFrame{Type: api.FrameConnectionError, Payload: msg})
				return
			}
			sub.userID = userID
			if err := sub.writeFrame(api.WSFrame{Type: api.FrameConnectionAck}); err != nil {
				return
			}
			go s.keepAlive(sub, done)

		case api.FrameStart:
			var payload struct {
				Query     string         `json:"query"`
				Variables map[string]any `json:"variables"`
			}
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				continue
			}
			if operationName(payload.Query) != "newMessage" {
				msg, _ := json.Marshal(gin.H{"message": "unknown subscription"})
				sub.writeFrame(api.WSFrame{ID: frame.ID, Type: api.FrameError, Payload: msg})
				continue
			}
			sub.opID = frame.ID
			sub.roomID = varInt(payload.Variables, "room")
			s.addSubscriber(sub)

		case api.FrameStop:
			if frame.ID == sub.opID {
				s.dropSubscriber(sub)
				sub.writeFrame(api.WSFrame{ID: sub.opID, Type: api.FrameComplete})
			}

		case api.FrameConnectionTerminate:
			return
		}
	}
}

// keepAlive emits ka frames so clients can keep a generous read deadline.
func (s *Server) keepAlive(sub *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(kaPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sub.writeFrame(api.WSFrame{Type: api.FrameConnectionKA}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// broadcast fans a new message out to every subscriber watching its room.
// A subscriber that started with no room filter receives everything, the way
// the production feed behaves; clients are expected to filter.
func (s *Server) broadcast(msg models.Message) {
	payload, err := json.Marshal(gin.H{"data": gin.H{"newMessage": msg}})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode push event")
		return
	}

	s.subMu.RLock()
	targets := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		if sub.roomID == 0 || sub.roomID == msg.RoomID {
			targets = append(targets, sub)
		}
	}
	s.subMu.RUnlock()

	for _, sub := range targets {
		frame := api.WSFrame{ID: sub.opID, Type: api.FrameData, Payload: payload}
		if err := sub.writeFrame(frame); err != nil {
			s.dropSubscriber(sub)
			sub.conn.Close()
		}
	}
}
