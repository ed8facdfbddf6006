package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ProgressMessage is one training progress update pushed to clients.
type ProgressMessage struct {
	Type      string    `json:"type"`
	Epoch     int       `json:"epoch"`
	TrainLoss float64   `json:"train_loss"`
	ValLoss   float64   `json:"val_loss"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressHub broadcasts training progress over websockets. Slow clients are
// dropped rather than stalling a training run.
type ProgressHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan ProgressMessage
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewProgressHub builds an empty hub.
func NewProgressHub(log *zap.Logger) *ProgressHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressHub{
		clients: make(map[*websocket.Conn]chan ProgressMessage),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Handle upgrades the request and streams progress until the client leaves.
func (h *ProgressHub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan ProgressMessage, 64)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	h.log.Debug("progress client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(conn, send)

	// the read loop only detects disconnects; clients send nothing
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(conn)
}

func (h *ProgressHub) writeLoop(conn *websocket.Conn, send chan ProgressMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *ProgressHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	conn.Close()
}

// Publish fans a progress update out to every connected client. It matches
// the pipeline's per-epoch callback signature.
func (h *ProgressHub) Publish(epoch int, trainLoss, valLoss float64) {
	msg := ProgressMessage{
		Type:      "training_progress",
		Epoch:     epoch,
		TrainLoss: trainLoss,
		ValLoss:   valLoss,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	for conn, send := range h.clients {
		select {
		case send <- msg:
		default:
			// client is not keeping up
			delete(h.clients, conn)
			close(send)
			conn.Close()
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
