package claim

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/livestock/claims/internal/platform/auth"
	"github.com/livestock/claims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/claims", auth.RequireRole(auth.RoleClerk))
	g.GET("", h.ListClaims)
	g.POST("", h.CreateClaim)
	g.GET("/:id", h.GetClaim)
	g.GET("/:id/summary", h.GetSummary)
	g.PUT("/:id", h.UpdateClaim)
	g.PATCH("/:id", h.PatchStatus)
}

type claimRequest struct {
	Fields
	Ledger  Ledger `json:"daily_records"`
	Version int    `json:"version,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type summaryResponse struct {
	ClaimID uuid.UUID `json:"claim_id"`
	Summary
}

func (h *Handler) CreateClaim(c echo.Context) error {
	var req claimRequest
	if err := c.Bind(&req); err != nil {
		return BindError(err)
	}
	created, err := h.svc.Create(c.Request().Context(), req.Fields, req.Ledger)
	if err != nil {
		return HTTPError(err)
	}
	setETag(c, created)
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetClaim(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	found, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err)
	}
	setETag(c, found)
	return c.JSON(http.StatusOK, found)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	found, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err)
	}
	s, err := found.Summary()
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, summaryResponse{ClaimID: found.ID, Summary: s})
}

func (h *Handler) ListClaims(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{
		PolicyNumber: strings.TrimSpace(c.QueryParam("policy_number")),
		Search:       strings.TrimSpace(c.QueryParam("q")),
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return HTTPError(err)
		}
		filter.Status = st
	}
	items, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err)
	}
	if items == nil {
		items = []*Claim{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

// UpdateClaim replaces a claim. The expected version comes from If-Match,
// falling back to the version field of the body.
func (h *Handler) UpdateClaim(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req claimRequest
	if err := c.Bind(&req); err != nil {
		return BindError(err)
	}
	expected := req.Version
	if raw := c.Request().Header.Get("If-Match"); raw != "" {
		v, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(raw, "W/"), `"`))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errorBody("invalid If-Match header", nil))
		}
		expected = v
	}
	updated, err := h.svc.Update(c.Request().Context(), id, req.Fields, req.Ledger, expected)
	if err != nil {
		return HTTPError(err)
	}
	setETag(c, updated)
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) PatchStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return BindError(err)
	}
	st, err := ParseStatus(req.Status)
	if err != nil {
		return HTTPError(err)
	}
	updated, err := h.svc.AdvanceStatus(c.Request().Context(), id, st)
	if err != nil {
		return HTTPError(err)
	}
	setETag(c, updated)
	return c.JSON(http.StatusOK, updated)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, errorBody("invalid id", nil))
	}
	return id, nil
}

func setETag(c echo.Context, cl *Claim) {
	c.Response().Header().Set("ETag", `"`+strconv.Itoa(cl.Version)+`"`)
}

func errorBody(msg string, details []string) map[string]interface{} {
	body := map[string]interface{}{"error": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	return body
}

// BindError reports a request body that could not be decoded. Date fields
// that fail to parse surface as a validation problem on that value.
func BindError(err error) error {
	if errors.Is(err, ErrInvalidDate) {
		return HTTPError(err)
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil && errors.Is(he.Internal, ErrInvalidDate) {
		return HTTPError(he.Internal)
	}
	return echo.NewHTTPError(http.StatusBadRequest, errorBody("invalid request body", nil))
}

// HTTPError maps a claim error to an HTTP error with a JSON body of the form
// {"error": ..., "details": [...]}.
func HTTPError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	code := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case errors.Is(err, ErrValidation):
		code, msg = http.StatusBadRequest, ErrValidation.Error()
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidNumber):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrLocked):
		code, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, ErrNotFound):
		code, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, ErrConflict), errors.Is(err, ErrVersionConflict):
		code, msg = http.StatusConflict, err.Error()
	case errors.Is(err, ErrDivisionByZero):
		code, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ErrUnavailable):
		code, msg = http.StatusServiceUnavailable, ErrUnavailable.Error()
	}
	return echo.NewHTTPError(code, errorBody(msg, Details(err))).SetInternal(err)
}
