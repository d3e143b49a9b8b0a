package note

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
	g := api.Group("/notes", auth.RequireRole("admin", "clinician", "peer-specialist", "case-manager"))
	g.POST("/sessions", h.OpenSession)
	g.POST("/sessions/save", h.SaveSession)
	g.POST("/:id/signature", h.BindSignature)
	g.GET("/:id", h.Get)
	g.GET("", h.List)
}

type openRequest struct {
	CaseID   uuid.UUID  `json:"case_id"`
	ClientID uuid.UUID  `json:"client_id"`
	NoteType string     `json:"note_type"`
	NoteID   *uuid.UUID `json:"note_id,omitempty"`
}

func (h *Handler) OpenSession(c echo.Context) error {
	var req openRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	authorID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}

	sess, err := h.svc.Open(c.Request().Context(), OpenParams{
		CaseID:   req.CaseID,
		ClientID: req.ClientID,
		NoteType: req.NoteType,
		AuthorID: authorID,
		NoteID:   req.NoteID,
	})
	if err != nil {
		return noteHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) SaveSession(c echo.Context) error {
	var sess Session
	if err := c.Bind(&sess); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if sess.AuthorID == uuid.Nil {
		if uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			sess.AuthorID = uid
		}
	}

	result, err := h.svc.Save(c.Request().Context(), sess)
	if err != nil {
		return noteHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type signatureRequest struct {
	SignatureRef string `json:"signature_ref"`
}

func (h *Handler) BindSignature(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	staffID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	var req signatureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SignatureRef == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "signature_ref is required")
	}

	n, err := h.svc.BindSignature(c.Request().Context(), id, staffID, req.SignatureRef)
	if err != nil {
		return noteHTTPError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "note not found")
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) List(c echo.Context) error {
	caseID, err := uuid.Parse(c.QueryParam("case_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByCase(c.Request().Context(), caseID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func noteHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrMissingTimeRange),
		errors.Is(err, ErrInvalidTimeRange),
		errors.Is(err, ErrSignatureRequired):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrPendingPrimaryChange),
		errors.Is(err, ErrReapprovalRequired),
		errors.Is(err, ErrNotEditable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
