package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/example/social-realtime-demo/events"
	"github.com/example/social-realtime-demo/modules/identity"
	"github.com/example/social-realtime-demo/modules/presence"
	"github.com/example/social-realtime-demo/modules/registry"
	"github.com/example/social-realtime-demo/modules/router"
)

// Handlers contains HTTP and WebSocket handlers.
type Handlers struct {
	reg      *registry.Registry
	router   *router.Router
	binder   *identity.Binder
	presence *presence.Notifier
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(reg *registry.Registry, rt *router.Router, binder *identity.Binder, notifier *presence.Notifier) *Handlers {
	return &Handlers{
		reg:      reg,
		router:   rt,
		binder:   binder,
		presence: notifier,
		logger:   slog.Default(),
	}
}

// HandleWebSocket owns one client socket from accept to teardown. It
// registers the connection, binds it if the upgrade carried valid
// credential cookies, then pumps inbound frames into the router.
func (h *Handlers) HandleWebSocket(ws *websocket.Conn) {
	ctx := context.Background()

	conn := registry.NewConn(ws)
	h.reg.Add(conn)
	go conn.WritePump()

	defer h.presence.HandleDisconnect(ctx, conn)

	h.logger.Info("WebSocket connected", "connID", conn.ID())

	h.bindFromCookies(ctx, ws, conn)

	ws.SetPongHandler(func(string) error {
		conn.Touch()
		return nil
	})

	for {
		_, msgBytes, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "connID", conn.ID(), "error", err)
			}
			break
		}

		var frame events.Frame
		if err := json.Unmarshal(msgBytes, &frame); err != nil {
			// Malformed frames are dropped; the connection stays up.
			h.logger.Debug("Dropping unparseable frame", "connID", conn.ID(), "error", err)
			continue
		}

		h.router.Dispatch(ctx, conn, frame)
	}

	h.logger.Info("WebSocket disconnected", "connID", conn.ID(), "userID", conn.UserID())
}

// bindFromCookies binds the socket to a user when the upgrade request
// carried a usable access or refresh token. A socket without credentials
// stays anonymous until it sends GET_USER_ID.
func (h *Handlers) bindFromCookies(ctx context.Context, ws *websocket.Conn, conn *registry.Conn) {
	accessToken, _ := ws.Locals("accessToken").(string)
	refreshToken, _ := ws.Locals("refreshToken").(string)
	if accessToken == "" && refreshToken == "" {
		return
	}

	userID, err := h.binder.Resolve(ctx, accessToken, refreshToken)
	if err != nil {
		if !errors.Is(err, identity.ErrUnauthenticated) {
			h.logger.Warn("Credential resolution failed", "connID", conn.ID(), "error", err)
		}
		return
	}

	h.reg.Bind(conn, userID)
	h.presence.HandleBind(ctx, conn)
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"service":     "social-realtime-demo",
		"connections": h.reg.Len(),
		"online":      h.reg.BoundLen(),
	})
}
