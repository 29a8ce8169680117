package order

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tableside/internal/dto"
	"github.com/Additional-Code/tableside/internal/presentation/http/response"
	menusvc "github.com/Additional-Code/tableside/internal/service/menu"
	service "github.com/Additional-Code/tableside/internal/service/order"
	"github.com/Additional-Code/tableside/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tableside/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc  *service.Service
	menu *menusvc.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, menu *menusvc.Service) *Handler {
	return &Handler{svc: svc, menu: menu}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	public := e.Group("/api/orders")
	public.POST("", h.create)
	public.GET("/:orderNumber", h.getByNumber)

	admin := e.Group("/api/admin/orders")
	admin.GET("", h.list)
	admin.PUT("/:id", h.updateStatus)
}

type createPayload struct {
	Items []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload createPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int("cart.lines", len(payload.Items)),
	))
	defer span.End()

	requests := make([]menusvc.ItemRequest, 0, len(payload.Items))
	for _, item := range payload.Items {
		requests = append(requests, menusvc.ItemRequest{ID: item.ID, Quantity: item.Quantity})
	}
	lines, err := h.menu.Snapshot(ctx, requests)
	if err != nil {
		return b.WithError(err).Build()
	}

	order, err := h.svc.Create(ctx, lines, payload.CustomerName, payload.CustomerPhone)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.Created(dto.CreateOrderResponse{OrderNumber: order.Number, OrderID: order.ID}).Build()
}

func (h *Handler) getByNumber(c echo.Context) error {
	b := response.New(c)

	number, err := strconv.ParseInt(c.Param("orderNumber"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid order number", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByNumber", trace.WithAttributes(attribute.Int64("order.number", number)))
	defer span.End()

	order, err := h.svc.GetByNumber(ctx, number)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders := h.svc.List(ctx)
	return response.New(c).List(dto.FromOrders(orders), len(orders)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	id := c.Param("id")
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}
