package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatgogo/client/internal/models"
	"chatgogo/client/internal/roomsync"
)

// Frame types of the graphql-ws subscription protocol. The devserver speaks
// the same dialect.
const (
	FrameConnectionInit      = "connection_init"
	FrameConnectionAck       = "connection_ack"
	FrameConnectionError     = "connection_error"
	FrameConnectionKA        = "ka"
	FrameConnectionTerminate = "connection_terminate"
	FrameStart               = "start"
	FrameData                = "data"
	FrameError               = "error"
	FrameComplete            = "complete"
	FrameStop                = "stop"
)

// WSFrame is one message on the subscription websocket.
type WSFrame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	wsWriteWait = 10 * time.Second
	// The server emits keep-alive frames well inside this window.
	wsReadWait = 60 * time.Second
)

// The sync engine consumes this client through its Backend contract.
var _ roomsync.Backend = (*Client)(nil)

// subscription is one live newMessage feed over its own websocket
// connection.
type subscription struct {
	conn *websocket.Conn
	opID string
	once sync.Once
}

// Cancel stops the operation and closes the connection. It never blocks on
// the read pump; the pump exits on the closed connection.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		deadline := time.Now().Add(wsWriteWait)
		s.conn.SetWriteDeadline(deadline)
		s.conn.WriteJSON(WSFrame{ID: s.opID, Type: FrameStop})
		s.conn.WriteJSON(WSFrame{Type: FrameConnectionTerminate})
		s.conn.Close()
	})
}

// SubscribeNewMessage opens the push feed for a room. Each data frame is
// decoded and handed to onMessage from a single goroutine, in receipt order.
func (c *Client) SubscribeNewMessage(ctx context.Context, roomID int64, onMessage func(models.Message)) (roomsync.Subscription, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{"graphql-ws"},
		HandshakeTimeout: wsWriteWait,
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := dialer.DialContext(ctx, c.WSURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &models.TransportError{Op: "subscribe", Err: err}
	}

	initPayload, _ := json.Marshal(map[string]string{"token": c.token})
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(WSFrame{Type: FrameConnectionInit, Payload: initPayload}); err != nil {
		conn.Close()
		return nil, &models.TransportError{Op: "subscribe", Err: err}
	}

	// Wait for the ack before starting the operation.
	conn.SetReadDeadline(time.Now().Add(wsReadWait))
	for {
		var frame WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			conn.Close()
			return nil, &models.TransportError{Op: "subscribe", Err: err}
		}
		if frame.Type == FrameConnectionKA {
			continue
		}
		if frame.Type == FrameConnectionError {
			conn.Close()
			return nil, &models.TransportError{Op: "subscribe", Err: fmt.Errorf("connection rejected: %s", frame.Payload)}
		}
		if frame.Type == FrameConnectionAck {
			break
		}
	}

	opID := uuid.NewString()
	startPayload, _ := json.Marshal(gqlRequest{
		Query:     subscriptionNewMessage,
		Variables: map[string]any{"room": strconv.FormatInt(roomID, 10)},
	})
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(WSFrame{ID: opID, Type: FrameStart, Payload: startPayload}); err != nil {
		conn.Close()
		return nil, &models.TransportError{Op: "subscribe", Err: err}
	}

	s := &subscription{conn: conn, opID: opID}
	go c.readPump(s, onMessage)
	return s, nil
}

// readPump drains the subscription connection, forwarding newMessage events.
// It exits when the connection drops, the server completes the operation, or
// Cancel closes the socket.
func (c *Client) readPump(s *subscription, onMessage func(models.Message)) {
	defer s.Cancel()

	for {
		s.conn.SetReadDeadline(time.Now().Add(wsReadWait))
		var frame WSFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("subscription read ended")
			}
			return
		}

		switch frame.Type {
		case FrameConnectionKA:
			// Keep-alive only resets the read deadline.
		case FrameData:
			if frame.ID != s.opID {
				continue
			}
			var payload struct {
				Data struct {
					NewMessage models.Message `json:"newMessage"`
				} `json:"data"`
			}
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				c.log.Warn().Err(err).Msg("dropping undecodable subscription event")
				continue
			}
			onMessage(payload.Data.NewMessage)
		case FrameError:
			c.log.Warn().Str("payload", string(frame.Payload)).Msg("subscription error frame")
		case FrameComplete:
			return
		}
	}
}
