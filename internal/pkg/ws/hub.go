package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks websocket subscribers keyed by job ID.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
	}
}

// HandleConnection upgrades the request and keeps the connection
// subscribed to the given job until the client disconnects.
func (h *Hub) HandleConnection(c *gin.Context, jobID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	cl := &client{conn: conn}
	h.register(jobID, cl)
	defer func() {
		h.unregister(jobID, cl)
		conn.Close()
	}()

	// Drain reads so we notice the peer closing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(jobID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[jobID] == nil {
		h.clients[jobID] = make(map[*client]struct{})
	}
	h.clients[jobID][cl] = struct{}{}
}

func (h *Hub) unregister(jobID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[jobID]; ok {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.clients, jobID)
		}
	}
}

// Broadcast sends a message to every subscriber of a job.
func (h *Hub) Broadcast(jobID string, message interface{}) {
	h.mu.RLock()
	set := make([]*client, 0, len(h.clients[jobID]))
	for cl := range h.clients[jobID] {
		set = append(set, cl)
	}
	h.mu.RUnlock()

	for _, cl := range set {
		if err := cl.writeJSON(message); err != nil {
			log.Printf("websocket write failed for job %s: %v", jobID, err)
		}
	}
}

// SubscriberCount reports how many connections watch a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}
