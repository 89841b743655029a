package submission

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/livestock/claims/internal/domain/claim"
	"github.com/livestock/claims/internal/platform/auth"
)

type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/claims/submit", h.Submit, auth.RequireRole(auth.RoleClerk))
}

type submitRequest struct {
	IDs       []uuid.UUID `json:"ids"`
	Recipient string      `json:"recipient,omitempty"`
}

func (h *Handler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return claim.BindError(err)
	}
	res, err := h.dispatcher.Submit(c.Request().Context(), req.IDs, strings.TrimSpace(req.Recipient))
	if err != nil {
		return claim.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}
