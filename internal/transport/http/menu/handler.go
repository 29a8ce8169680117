package menu

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/tableside/internal/dto"
	"github.com/Additional-Code/tableside/internal/presentation/http/response"
	service "github.com/Additional-Code/tableside/internal/service/menu"
	"github.com/Additional-Code/tableside/pkg/errorbank"
)

// Handler exposes the menu over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a menu Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/api/menu", h.listAvailable)

	admin := e.Group("/api/admin/menu")
	admin.GET("", h.list)
	admin.POST("", h.add)
	admin.PUT("/:id", h.update)
	admin.PUT("/:id/availability", h.setAvailability)
	admin.DELETE("/:id", h.remove)
}

type draftPayload struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    string           `json:"category"`
	Available   *bool            `json:"available"`
}

func (p draftPayload) toDraft() (service.Draft, error) {
	if p.Price == nil {
		return service.Draft{}, errorbank.Validation("invalid menu item", errorbank.WithDetail("price", "is required"))
	}
	return service.Draft{
		Name:        p.Name,
		Description: p.Description,
		Price:       *p.Price,
		Category:    p.Category,
		Available:   p.Available,
	}, nil
}

func (h *Handler) listAvailable(c echo.Context) error {
	items, err := h.svc.ListAvailable(c.Request().Context())
	if err != nil {
		return response.New(c).WithError(err).Build()
	}
	return response.New(c).List(dto.FromMenuItems(items), len(items)).Build()
}

func (h *Handler) list(c echo.Context) error {
	items := h.svc.List(c.Request().Context())
	return response.New(c).List(dto.FromMenuItems(items), len(items)).Build()
}

func (h *Handler) add(c echo.Context) error {
	b := response.New(c)

	var payload draftPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	draft, err := payload.toDraft()
	if err != nil {
		return b.WithError(err).Build()
	}

	item, err := h.svc.Add(c.Request().Context(), draft)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.Created(dto.FromMenuItem(item)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	var payload draftPayload
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	draft, err := payload.toDraft()
	if err != nil {
		return b.WithError(err).Build()
	}

	item, err := h.svc.Update(c.Request().Context(), c.Param("id"), draft)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromMenuItem(item)).Build()
}

func (h *Handler) setAvailability(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Available *bool `json:"available"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Available == nil {
		return b.WithError(errorbank.Validation("available is required")).Build()
	}

	item, err := h.svc.SetAvailability(c.Request().Context(), c.Param("id"), *payload.Available)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromMenuItem(item)).Build()
}

func (h *Handler) remove(c echo.Context) error {
	b := response.New(c)
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"message": "Menu item deleted successfully"}).Build()
}
