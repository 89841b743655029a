package claim

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/livestock/claims/internal/platform/auth"
)

// WorksheetHandler edits a ledger that lives on the client. Every call sends
// the current records and receives the new ones; nothing is stored.
type WorksheetHandler struct{}

func NewWorksheetHandler() *WorksheetHandler {
	return &WorksheetHandler{}
}

func (h *WorksheetHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/worksheet", auth.RequireRole(auth.RoleClerk))
	g.POST("/append", h.Append)
	g.POST("/edit", h.Edit)
	g.POST("/remove", h.Remove)
	g.POST("/summary", h.Summary)
}

type worksheetRequest struct {
	InitialHeadcount int        `json:"initial_headcount"`
	Records          Ledger     `json:"daily_records"`
	Entry            EntryInput `json:"entry"`
	ID               uuid.UUID  `json:"id"`
	Patch            EntryPatch `json:"patch"`
}

type worksheetResponse struct {
	Records Ledger       `json:"daily_records"`
	Record  *DailyRecord `json:"record,omitempty"`
	Summary *Summary     `json:"summary,omitempty"`
}

func (h *WorksheetHandler) bind(c echo.Context) (worksheetRequest, error) {
	var req worksheetRequest
	if err := c.Bind(&req); err != nil {
		return req, BindError(err)
	}
	if req.Records == nil {
		req.Records = Ledger{}
	}
	return req, nil
}

// respond attaches the summary when it can be computed. A missing initial
// headcount leaves the rate out instead of failing the edit.
func (h *WorksheetHandler) respond(c echo.Context, req worksheetRequest, rec *DailyRecord) error {
	resp := worksheetResponse{Records: req.Records, Record: rec}
	if s, err := Summarize(req.Records, req.InitialHeadcount); err == nil || errors.Is(err, ErrDivisionByZero) {
		resp.Summary = &s
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *WorksheetHandler) Append(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	rec, err := req.Records.Append(req.Entry, req.InitialHeadcount)
	if err != nil {
		return HTTPError(err)
	}
	return h.respond(c, req, &rec)
}

func (h *WorksheetHandler) Edit(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	if err := req.Records.Edit(req.ID, req.Patch); err != nil {
		return HTTPError(err)
	}
	return h.respond(c, req, nil)
}

func (h *WorksheetHandler) Remove(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	if err := req.Records.Remove(req.ID); err != nil {
		return HTTPError(err)
	}
	return h.respond(c, req, nil)
}

func (h *WorksheetHandler) Summary(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	s, err := Summarize(req.Records, req.InitialHeadcount)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}
