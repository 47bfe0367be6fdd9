package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/planextra/backend/internal/model/event"
	realtimeService "github.com/planextra/backend/internal/service/realtime"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	sendBuffer   = 64
)

// Handler upgrades HTTP requests to realtime WebSocket connections.
type Handler struct {
	hub              *realtimeService.Hub
	handshakeTimeout time.Duration
	upgrader         websocket.Upgrader
}

// New creates the WebSocket handler.
func New(hub *realtimeService.Hub, handshakeTimeout time.Duration) *Handler {
	return &Handler{
		hub:              hub,
		handshakeTimeout: handshakeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the realtime endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := credentialFrom(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sender := newWSSender(conn)
	go sender.run()

	// Authentication is bounded; a slow credential check must not pin the
	// connection open indefinitely.
	ctx, cancel := context.WithTimeout(r.Context(), h.handshakeTimeout)
	client, err := h.hub.Connect(ctx, token, sender)
	cancel()
	if err != nil {
		log.Info().Err(err).Msg("websocket connection refused")
		sender.Send(event.New(event.TypeError, event.Error{Message: "authentication failed"}))
		sender.Close()
		return
	}
	defer h.hub.Disconnect(client)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg event.Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", client.ID).Msg("websocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.hub.HandleEvent(r.Context(), client, msg)
	}
}

// credentialFrom pulls the bearer credential from the upgrade request.
// Browsers cannot set headers on WebSocket connects, so a token query
// parameter is accepted as well.
func credentialFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// wsSender pumps outbound events through a buffered channel so the hub
// never blocks on a slow connection. A full buffer fails the send and the
// hub force-closes the connection.
type wsSender struct {
	conn *websocket.Conn
	send chan event.Envelope
	done chan struct{}
	once sync.Once
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{
		conn: conn,
		send: make(chan event.Envelope, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues an event for delivery. It never blocks.
func (s *wsSender) Send(env event.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

// Close stops the write pump and closes the transport. Idempotent.
func (s *wsSender) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *wsSender) run() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case env := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			// Drain what was queued before the close, then say goodbye.
			for {
				select {
				case env := <-s.send:
					s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := s.conn.WriteJSON(env); err != nil {
						return
					}
				default:
					s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
