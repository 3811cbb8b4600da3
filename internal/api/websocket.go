// websocket.go - Upload progress streaming over WebSocket
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the progress protocol
const (
	// Server -> Client messages
	MsgTypeInit     = "upload:init"
	MsgTypeProgress = "upload:progress"
	MsgTypeComplete = "upload:complete"
	MsgTypeError    = "upload:error"
	MsgTypePong     = "pong"

	// Client -> Server messages
	MsgTypePing = "ping"
)

const writeTimeout = 5 * time.Second

// ProgressMessage is one frame of the upload progress stream.
type ProgressMessage struct {
	Type      string  `json:"type"`
	FileName  string  `json:"fileName,omitempty"`
	Sent      int64   `json:"sent,omitempty"`
	Total     int64   `json:"total,omitempty"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// subscriber serializes writes to one connection. Publishes arrive from
// parallel upload goroutines and the pong reply comes from the read loop;
// gorilla/websocket allows only one concurrent writer per connection.
type subscriber struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (s *subscriber) send(msg ProgressMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.ws.WriteJSON(msg)
}

// ProgressHub fans upload progress out to the WebSocket subscribers of each
// flow. Publishing never blocks the upload path: a slow subscriber is
// dropped rather than throttling the transfer.
type ProgressHub struct {
	mu       sync.RWMutex
	conns    map[string]map[*websocket.Conn]*subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewProgressHub creates an empty hub.
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHub{
		conns: make(map[string]map[*websocket.Conn]*subscriber),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Dev server runs on a different origin
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		logger: logger,
	}
}

// HandleProgressSocket upgrades the connection and subscribes it to one
// flow's progress stream. The read loop only answers pings; all data flows
// server -> client, and the pong goes through the subscriber's serialized
// write path like every published frame.
func (hub *ProgressHub) HandleProgressSocket(c echo.Context) error {
	flowID := c.Param("id")
	ws, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return NewBadRequestError("websocket upgrade failed", err)
	}

	sub := hub.subscribe(flowID, ws)
	defer func() {
		hub.unsubscribe(flowID, ws)
		ws.Close()
	}()

	ws.SetReadLimit(4 * 1024)
	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			return nil
		}
		if msg.Type == MsgTypePing {
			sub.send(ProgressMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		}
	}
}

func (hub *ProgressHub) subscribe(flowID string, ws *websocket.Conn) *subscriber {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.conns[flowID] == nil {
		hub.conns[flowID] = make(map[*websocket.Conn]*subscriber)
	}
	sub := &subscriber{ws: ws}
	hub.conns[flowID][ws] = sub
	return sub
}

func (hub *ProgressHub) unsubscribe(flowID string, ws *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.conns[flowID], ws)
	if len(hub.conns[flowID]) == 0 {
		delete(hub.conns, flowID)
	}
}

// Publish sends a message to every subscriber of the flow. Write failures
// unsubscribe the connection.
func (hub *ProgressHub) Publish(flowID string, msg ProgressMessage) {
	msg.Timestamp = time.Now().UnixMilli()

	hub.mu.RLock()
	targets := make([]*subscriber, 0, len(hub.conns[flowID]))
	for _, sub := range hub.conns[flowID] {
		targets = append(targets, sub)
	}
	hub.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.send(msg); err != nil {
			hub.logger.Debug("dropping slow progress subscriber", zap.String("flowID", flowID), zap.Error(err))
			hub.unsubscribe(flowID, sub.ws)
			sub.ws.Close()
		}
	}
}
