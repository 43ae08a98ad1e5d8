package display

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dencamenew/vsuet-attendance/internal/store"
	"github.com/dencamenew/vsuet-attendance/pkg/logger"
	"github.com/dencamenew/vsuet-attendance/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096

	defaultLivenessPoll = time.Second
)

// Event is the JSON payload delivered to display clients.
type Event struct {
	Event   string `json:"event"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// Event names on the display wire.
const (
	EventToken         = "token"
	EventSessionClosed = "session_closed"
	EventError         = "error"
)

// Gateway streams the current token of one session to a connected classroom
// display. Each connection runs its own independent loop; N displays on the
// same session are N loops sharing nothing but the broadcast channel.
type Gateway struct {
	store    store.Store
	poll     time.Duration
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewGateway constructs a display gateway polling session liveness every
// livenessPoll.
func NewGateway(st store.Store, livenessPoll time.Duration) *Gateway {
	if livenessPoll <= 0 {
		livenessPoll = defaultLivenessPoll
	}

	return &Gateway{
		store: st,
		poll:  livenessPoll,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
		log: logger.WithModule("display"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and runs the streaming
// loop until the session closes, the client disconnects, or an unrecoverable
// error occurs.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("display upgrade failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	metrics.ConnectedDisplays.Inc()
	defer metrics.ConnectedDisplays.Dec()

	g.stream(r.Context(), conn, sessionID)
}

func (g *Gateway) stream(ctx context.Context, conn *websocket.Conn, sessionID string) {
	active, err := g.store.IsActive(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		g.writeEvent(conn, Event{Event: EventError, Message: "session not found"})
		return
	}
	if err != nil {
		g.writeEvent(conn, Event{Event: EventError, Message: "session state unavailable"})
		return
	}
	if !active {
		g.writeEvent(conn, Event{Event: EventSessionClosed})
		return
	}

	// Send the current token before subscribing so a client that connects
	// between rotations is never left looking at a blank screen. A publish
	// landing in this gap is recovered by the liveness poll below.
	lastToken, err := g.store.CurrentToken(ctx, sessionID)
	if err != nil {
		g.writeEvent(conn, Event{Event: EventError, Message: "session state unavailable"})
		return
	}
	if err := g.writeEvent(conn, Event{Event: EventToken, Token: lastToken}); err != nil {
		return
	}

	sub, err := g.store.SubscribeTokens(ctx, sessionID)
	if err != nil {
		g.writeEvent(conn, Event{Event: EventError, Message: "token announcements unavailable"})
		return
	}
	defer sub.Close()

	// A display never sends application data; the read loop exists to notice
	// the peer going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		conn.SetReadLimit(maxMessageSize)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-clientGone:
			return

		case token, ok := <-sub.Tokens():
			if !ok {
				g.writeEvent(conn, Event{Event: EventError, Message: "announcement channel lost"})
				return
			}
			if err := g.writeEvent(conn, Event{Event: EventToken, Token: token}); err != nil {
				return
			}
			lastToken = token

		case <-ticker.C:
			active, err := g.store.IsActive(ctx, sessionID)
			if err != nil {
				g.writeEvent(conn, Event{Event: EventError, Message: "session state unavailable"})
				return
			}
			if !active {
				// Closing does not publish on the token channel, so the poll
				// is what turns a teacher's close into a terminal event here.
				g.writeEvent(conn, Event{Event: EventSessionClosed})
				return
			}

			// Catch up on any publish this connection missed.
			current, err := g.store.CurrentToken(ctx, sessionID)
			if err != nil {
				g.writeEvent(conn, Event{Event: EventError, Message: "session state unavailable"})
				return
			}
			if current != lastToken {
				if err := g.writeEvent(conn, Event{Event: EventToken, Token: current}); err != nil {
					return
				}
				lastToken = current
			}
		}
	}
}

func (g *Gateway) writeEvent(conn *websocket.Conn, event Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(event)
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
