package roster

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carenotes/carenotes/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/roster", auth.RequireRole("admin", "clinician", "peer-specialist", "case-manager", "manager"))
	g.GET("/signing-authorities", h.SigningAuthorities)
}

func (h *Handler) SigningAuthorities(c echo.Context) error {
	staffID := uuid.Nil
	if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		staffID = uid
	}
	authorities, hasManager, err := h.svc.SigningAuthorities(c.Request().Context(), staffID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"signing_authorities": authorities,
		"has_manager":         hasManager,
	})
}
