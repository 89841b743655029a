package importer

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/livestock/claims/internal/platform/auth"
)

// UploadRoute is the upload path relative to the API group.
const UploadRoute = "/admin/import"

type Handler struct {
	mapper *Mapper
}

func NewHandler(mapper *Mapper) *Handler {
	return &Handler{mapper: mapper}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST(UploadRoute, h.Upload, auth.RequireRole(auth.RoleAdmin))
}

// Upload imports the policy rows of a multipart "file" field. Row problems
// are reported in the result; only an unreadable file fails the request.
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return badRequest("no file provided")
	}
	src, err := SourceFor(fh.Filename)
	if err != nil {
		return badRequest(err.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest("could not open uploaded file")
	}
	defer f.Close()

	rows, err := src.Rows(f)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) {
			return badRequest(ErrEmptyFile.Error())
		}
		return badRequest("could not read file: " + err.Error())
	}

	return c.JSON(http.StatusOK, h.mapper.Run(c.Request().Context(), rows))
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{"error": msg})
}
