package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/uno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) dial(t *testing.T, ctx context.Context, path, player string, subprotocols ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   http.Header{"Authorization": []string{"Bearer " + tokenFor(t, player)}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func TestSessionStreamPushesViewerSnapshots(t *testing.T) {
	ts := setupTestServer(t, nil)
	snap := ts.startedSession(t, 10, "a", "b")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := "/sessions/" + snap.SessionID.String()
	c := ts.dial(t, ctx, path+"/ws", "b", Subprotocol)

	var first uno.Snapshot
	require.NoError(t, wsjson.Read(ctx, c, &first))
	assert.Equal(t, snap.SessionID, first.SessionID)
	assert.Equal(t, uno.PlayerID("b"), first.Viewer)
	assert.Len(t, first.Hand, uno.HandSize)

	require.Eventually(t, func() bool { return ts.hub.Subscribers(snap.SessionID) == 1 }, time.Second, 10*time.Millisecond)

	holder := string(snap.TurnHolder)
	require.Equal(t, http.StatusOK, ts.call(t, http.MethodPost, path+"/draw", holder, nil, nil))

	var next uno.Snapshot
	require.NoError(t, wsjson.Read(ctx, c, &next))
	assert.Equal(t, snap.Turn+1, next.Turn)
	assert.Equal(t, uno.PlayerID("b"), next.Viewer)

	c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return ts.hub.Subscribers(snap.SessionID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestSessionStreamRequiresSubprotocol(t *testing.T) {
	ts := setupTestServer(t, nil)
	snap := ts.startedSession(t, 10, "a", "b")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := ts.dial(t, ctx, "/sessions/"+snap.SessionID.String()+"/ws", "a")
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestSubscribeSessionSeesChangesAfterItsSnapshot(t *testing.T) {
	ts := setupTestServer(t, nil)
	snap := ts.startedSession(t, 10, "a", "b")
	ctx := context.Background()

	sub, initial, err := subscribeSession(ctx, ts.gw, ts.hub, snap.SessionID, "b")
	require.NoError(t, err)
	defer ts.hub.Unsubscribe(sub)
	assert.Equal(t, snap.Turn, initial.Turn)

	_, err = ts.gw.SubmitDraw(ctx, snap.SessionID, snap.TurnHolder)
	require.NoError(t, err)
	require.Len(t, sub.C, 1)
	assert.Equal(t, initial.Turn+1, (<-sub.C).Turn)

	_, _, err = subscribeSession(ctx, ts.gw, ts.hub, uuid.New(), "b")
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)
	assert.Equal(t, 1, ts.hub.Subscribers(snap.SessionID))
}
