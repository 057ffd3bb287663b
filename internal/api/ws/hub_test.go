package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/lostfound/pkg/dto"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt dto.WSEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestHubBroadcastsToAll(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, srv, "")
	b := dial(t, srv, "")
	waitClients(t, hub, 2)

	id := uuid.New()
	hub.BroadcastEvent(&dto.WSEvent{Type: "report_created", ReportID: id})

	assert.Equal(t, id, readEvent(t, a).ReportID)
	assert.Equal(t, id, readEvent(t, b).ReportID)
}

func TestHubFiltersByReport(t *testing.T) {
	hub, srv := startHub(t)
	watched := uuid.New()
	conn := dial(t, srv, "?report_id="+watched.String())
	waitClients(t, hub, 1)

	hub.BroadcastEvent(&dto.WSEvent{Type: "report_updated", ReportID: uuid.New()})
	hub.BroadcastEvent(&dto.WSEvent{Type: "report_deleted", ReportID: watched})

	evt := readEvent(t, conn)
	assert.Equal(t, watched, evt.ReportID)
	assert.Equal(t, "report_deleted", evt.Type)
}

func TestHubRejectsBadFilter(t *testing.T) {
	_, srv := startHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?report_id=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	waitClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitClients(t, hub, 0)
}
