package approval

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carenotes/carenotes/internal/platform/auth"
	"github.com/carenotes/carenotes/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/approvals", auth.RequireRole("admin", "clinician", "peer-specialist", "case-manager", "manager"))
	g.POST("", h.Create)
	g.POST("/:id/approve", h.Approve)
	g.POST("/:id/reject", h.Reject)
	g.GET("/pending", h.ListPending)
}

type createRequest struct {
	NoteID     uuid.UUID `json:"note_id"`
	ApproverID uuid.UUID `json:"approver_id"`
	Message    *string   `json:"message,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	requesterID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown requester")
	}

	r, err := h.svc.Request(c.Request().Context(), req.NoteID, requesterID, req.ApproverID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotSigned), errors.Is(err, ErrAlreadyCompleted):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	approverID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown approver")
	}

	r, err := h.svc.Approve(c.Request().Context(), id, approverID)
	if err != nil {
		return approvalHTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type rejectRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	approverID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown approver")
	}
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	r, err := h.svc.Reject(c.Request().Context(), id, approverID, req.Reason)
	if err != nil {
		return approvalHTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListPending(c echo.Context) error {
	approverID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown approver")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPendingForApprover(c.Request().Context(), approverID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func approvalHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrWrongApprover):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
