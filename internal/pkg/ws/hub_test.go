package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func dialHub(t *testing.T, hub *Hub, jobID string) *websocket.Conn {
	t.Helper()

	r := gin.New()
	r.GET("/ws/jobs/:id", func(c *gin.Context) {
		hub.HandleConnection(c, c.Param("id"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/jobs/" + jobID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, jobID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(jobID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers for job %s, got %d", want, jobID, hub.SubscriberCount(jobID))
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "job-1")
	waitForSubscribers(t, hub, "job-1", 1)

	hub.Broadcast("job-1", map[string]string{"status": "processing"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "processing", msg["status"])
}

func TestBroadcastScopedToJob(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "job-a")
	waitForSubscribers(t, hub, "job-a", 1)

	hub.Broadcast("job-b", map[string]string{"status": "done"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg map[string]string
	err := conn.ReadJSON(&msg)
	assert.Error(t, err) // nothing should arrive
}

func TestUnregisterOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "job-1")
	waitForSubscribers(t, hub, "job-1", 1)

	conn.Close()
	waitForSubscribers(t, hub, "job-1", 0)
}
