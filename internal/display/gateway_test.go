package display

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dencamenew/vsuet-attendance/internal/store"
)

const testPoll = 50 * time.Millisecond

func newTestGateway(t *testing.T) (*Gateway, *store.RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := store.NewRedisStore(client)
	return NewGateway(st, testPoll), st
}

func dialGateway(t *testing.T, gw *Gateway, sessionID string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.Serve(w, r, sessionID)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func openSession(t *testing.T, st *store.RedisStore, id, token string) {
	t.Helper()
	require.NoError(t, st.Create(context.Background(), id, store.Metadata{
		SubjectName: "Databases",
		GroupName:   "CS-31",
	}, token))
}

func TestRejectsUnknownSession(t *testing.T) {
	gw, _ := newTestGateway(t)

	conn := dialGateway(t, gw, "missing")
	event := readEvent(t, conn)
	require.Equal(t, EventError, event.Event)
}

func TestRejectsInactiveSession(t *testing.T) {
	gw, st := newTestGateway(t)
	openSession(t, st, "s1", "tok-0")

	_, err := st.Close(context.Background(), "s1")
	require.NoError(t, err)

	conn := dialGateway(t, gw, "s1")
	event := readEvent(t, conn)
	require.Equal(t, EventSessionClosed, event.Event)
}

func TestSendsCurrentTokenOnConnect(t *testing.T) {
	gw, st := newTestGateway(t)
	openSession(t, st, "s1", "tok-0")

	// Rotations happened before anyone connected; the client must still get
	// the then-current value immediately.
	require.NoError(t, st.SetToken(context.Background(), "s1", "tok-3"))

	conn := dialGateway(t, gw, "s1")
	event := readEvent(t, conn)
	require.Equal(t, EventToken, event.Event)
	require.Equal(t, "tok-3", event.Token)
}

func TestForwardsPublishedRotations(t *testing.T) {
	gw, st := newTestGateway(t)
	openSession(t, st, "s1", "tok-0")

	conn := dialGateway(t, gw, "s1")

	event := readEvent(t, conn)
	require.Equal(t, "tok-0", event.Token)

	ctx := context.Background()
	require.NoError(t, st.SetToken(ctx, "s1", "tok-1"))
	require.NoError(t, st.PublishToken(ctx, "s1", "tok-1"))

	event = readEvent(t, conn)
	require.Equal(t, EventToken, event.Event)
	require.Equal(t, "tok-1", event.Token)
}

func TestConvergesAfterDroppedPublish(t *testing.T) {
	gw, st := newTestGateway(t)
	openSession(t, st, "s1", "tok-0")

	conn := dialGateway(t, gw, "s1")

	event := readEvent(t, conn)
	require.Equal(t, "tok-0", event.Token)

	// Token rotates but the announcement never arrives (channel gap). The
	// liveness poll must still converge on the current value.
	require.NoError(t, st.SetToken(context.Background(), "s1", "tok-1"))

	event = readEvent(t, conn)
	require.Equal(t, EventToken, event.Event)
	require.Equal(t, "tok-1", event.Token)
}

func TestNotifiesWhenSessionCloses(t *testing.T) {
	gw, st := newTestGateway(t)
	openSession(t, st, "s1", "tok-0")

	conn := dialGateway(t, gw, "s1")

	event := readEvent(t, conn)
	require.Equal(t, "tok-0", event.Token)

	_, err := st.Close(context.Background(), "s1")
	require.NoError(t, err)

	// Detected via the liveness poll, bounded by one poll period.
	event = readEvent(t, conn)
	require.Equal(t, EventSessionClosed, event.Event)

	// Server closes its side afterwards.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var next Event
	require.Error(t, conn.ReadJSON(&next))
}

func TestMultipleDisplaysReceiveSameRotation(t *testing.T) {
	gw, st := newTestGateway(t)
	openSession(t, st, "s1", "tok-0")

	first := dialGateway(t, gw, "s1")
	second := dialGateway(t, gw, "s1")

	require.Equal(t, "tok-0", readEvent(t, first).Token)
	require.Equal(t, "tok-0", readEvent(t, second).Token)

	ctx := context.Background()
	require.NoError(t, st.SetToken(ctx, "s1", "tok-1"))
	require.NoError(t, st.PublishToken(ctx, "s1", "tok-1"))

	require.Equal(t, "tok-1", readEvent(t, first).Token)
	require.Equal(t, "tok-1", readEvent(t, second).Token)
}
