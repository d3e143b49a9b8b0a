package hipaa

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carenotes/carenotes/internal/platform/auth"
	"github.com/carenotes/carenotes/pkg/pagination"
)

// Handler exposes the PHI access trail to compliance reviewers.
type Handler struct {
	log *AccessLogger
}

func NewHandler(log *AccessLogger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/audit", auth.RequireRole("admin", "manager"))
	g.GET("/access", h.ListAccess)
}

func (h *Handler) ListAccess(c echo.Context) error {
	clientID, err := uuid.Parse(c.QueryParam("client_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid client_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.log.ListByClient(c.Request().Context(), clientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
