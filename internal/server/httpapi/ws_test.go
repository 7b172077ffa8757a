package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
)

func dialSocket(t *testing.T, tsURL, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(tsURL, "http") + "/ws"
	header := http.Header{}
	header.Set(common.AuthorizationHeaderName, "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_DeliversEventsToOwnSessionsOnly(t *testing.T) {
	s, ts := setupServer(t, nil, nil)

	alice := dialSocket(t, ts.URL, accessToken(t, "alice"))
	bob := dialSocket(t, ts.URL, accessToken(t, "bob"))

	// the handshake returns before the handler registers the session
	require.Eventually(t, func() bool {
		return s.Hub().sessionCount("alice") == 1 && s.Hub().sessionCount("bob") == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Hub().Notify("alice", &services.ItemEvent{Event: services.EventMove, UUID: "i1", Dest: "f2"})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := alice.ReadMessage()
	require.NoError(t, err)

	var event services.ItemEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, services.EventMove, event.Event)
	assert.Equal(t, "i1", event.UUID)
	assert.Equal(t, "f2", event.Dest)

	// bob sees nothing
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestHub_SocketRequiresToken(t *testing.T) {
	_, ts := setupServer(t, nil, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_CloseAllDisconnects(t *testing.T) {
	s, ts := setupServer(t, nil, nil)

	conn := dialSocket(t, ts.URL, accessToken(t, "alice"))
	require.Eventually(t, func() bool {
		return s.Hub().sessionCount("alice") == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Hub().CloseAll()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
