package live

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/broadcast"
	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/dto"
	"github.com/Additional-Code/tableside/internal/entity"
)

const (
	readLimit     = 512
	snapshotEvent = "snapshot"
)

// Orders is the read side the feed needs to send the initial snapshot.
type Orders interface {
	List(ctx context.Context) []entity.Order
}

// Handler streams order events to admin dashboards over websockets.
type Handler struct {
	hub      *broadcast.Hub
	orders   Orders
	cfg      config.Live
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a live feed Handler.
func NewHandler(hub *broadcast.Hub, orders Orders, cfg config.Config, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    hub,
		orders: orders,
		cfg:    cfg.Live,
		logger: logger,
	}
	allowed := cfg.HTTP.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowed)
		},
	}
	return h
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/api/admin/orders/live", h.serve)
}

func (h *Handler) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied with an HTTP error.
		h.logger.Debug("websocket upgrade rejected", zap.Error(err))
		return nil
	}

	// subscribe before reading the snapshot so no event falls in between.
	sub := h.hub.Subscribe()
	log := h.logger.With(zap.Uint64("subscription", sub.ID()), zap.String("remote", c.RealIP()))
	log.Info("live session opened")

	done := make(chan struct{})
	go h.readPump(conn, done)

	h.writePump(c.Request().Context(), conn, sub, done, log)

	h.hub.Unsubscribe(sub)
	_ = conn.Close()
	<-done
	log.Info("live session closed", zap.Uint64("dropped", sub.Dropped()))
	return nil
}

// readPump drains client frames so control messages are processed and a closed
// connection is noticed.
func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(readLimit)
	deadline := h.cfg.PingInterval * 2
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscription, done <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	orders := h.orders.List(ctx)
	seen := newSnapshotFilter(orders)
	snapshot := dto.OrderSnapshot{Event: snapshotEvent, Orders: dto.FromOrders(orders)}
	if err := h.writeJSON(conn, snapshot); err != nil {
		log.Debug("snapshot write failed", zap.Error(err))
		return
	}

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(h.cfg.WriteTimeout))
				return
			}
			if seen.covers(ev) {
				continue
			}
			msg := dto.OrderEvent{Event: string(ev.Kind), Order: dto.FromOrder(ev.Order), At: ev.At}
			if err := h.writeJSON(conn, msg); err != nil {
				log.Debug("event write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// snapshotFilter holds the ids of the orders sent in the snapshot. The listener is
// subscribed before the snapshot is taken, so an order created in between arrives
// twice: once in the snapshot and once as order.created.
type snapshotFilter map[string]struct{}

func newSnapshotFilter(orders []entity.Order) snapshotFilter {
	f := make(snapshotFilter, len(orders))
	for _, o := range orders {
		f[o.ID] = struct{}{}
	}
	return f
}

// covers reports whether ev is the creation of an order the snapshot already
// carried. Each id is matched at most once.
func (f snapshotFilter) covers(ev broadcast.Event) bool {
	if ev.Kind != broadcast.OrderCreated {
		return false
	}
	if _, ok := f[ev.Order.ID]; !ok {
		return false
	}
	delete(f, ev.Order.ID)
	return true
}

func (h *Handler) writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(allowed, origin) || slices.Contains(allowed, "*") {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
