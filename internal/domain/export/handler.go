package export

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/livestock/claims/internal/domain/claim"
	"github.com/livestock/claims/internal/platform/auth"
)

type Handler struct {
	exporter *Exporter
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/claims/export", h.Export, auth.RequireRole(auth.RoleClerk))
}

// exportRequest names stored claims by id or carries unsaved claims inline.
// Mode defaults to single for one claim and all otherwise.
type exportRequest struct {
	IDs    []uuid.UUID    `json:"ids"`
	Claims []*claim.Claim `json:"claims"`
	Mode   string         `json:"mode"`
}

func (h *Handler) Export(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return claim.BindError(err)
	}
	if len(req.IDs) > 0 && len(req.Claims) > 0 {
		return claim.HTTPError(claim.Invalid("send either ids or claims, not both"))
	}
	count := len(req.IDs) + len(req.Claims)
	if count == 0 {
		return claim.HTTPError(claim.Invalid("no claims data provided"))
	}

	mode := ModeAll
	if count == 1 {
		mode = ModeSingle
	}
	if req.Mode != "" {
		m, err := ParseMode(req.Mode)
		if err != nil {
			return claim.HTTPError(err)
		}
		mode = m
	}

	var doc *Document
	var err error
	if len(req.IDs) > 0 {
		doc, err = h.exporter.Export(c.Request().Context(), req.IDs, mode)
	} else {
		doc, err = h.exporter.Render(req.Claims, mode)
	}
	if err != nil {
		return claim.HTTPError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
	return c.Blob(http.StatusOK, ContentType, doc.Data)
}
