// Package httpapi is a thin, illustrative transport adapter over the
// Verification Engine's library API. Authentication, per-tenant rate
// limiting, and production routing concerns are the operator's
// responsibility; this package only demonstrates wiring gin handlers to
// Engine methods one-to-one.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/engine"
	"sparkfund/services/identity-verification/internal/logger"
)

// Handler adapts engine.Engine to gin.
type Handler struct {
	engine *engine.Engine
	log    *logger.Logger
}

func NewHandler(e *engine.Engine, log *logger.Logger) *Handler {
	return &Handler{engine: e, log: log}
}

// Register mounts every route under router.
func (h *Handler) Register(router gin.IRouter) {
	router.POST("/verifications", h.initialize)
	router.GET("/verifications/:id", h.get)
	router.POST("/verifications/:id/front", h.submitFront)
	router.POST("/verifications/:id/back", h.submitBack)
	router.POST("/verifications/:id/cross-validate", h.crossValidate)
	router.POST("/verifications/:id/live", h.submitLive)
	router.POST("/verifications/:id/finalize", h.finalize)
	router.POST("/verifications/:id/approve", h.approve)
	router.POST("/verifications/:id/reject", h.reject)
}

type initializeRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	TenantID  string `json:"tenant_id"`
}

func (h *Handler) initialize(c *gin.Context) {
	var body initializeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.engine.Initialize(c.Request.Context(), body.SubjectID, body.TenantID)
	h.respond(c, http.StatusCreated, req, err)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, err := h.engine.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, req, err)
}

type pathRequest struct {
	Path string `json:"path" binding:"required"`
}

func (h *Handler) submitFront(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var body pathRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.engine.SubmitFront(c.Request.Context(), id, body.Path)
	h.respond(c, http.StatusOK, req, err)
}

func (h *Handler) submitBack(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var body pathRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.engine.SubmitBack(c.Request.Context(), id, body.Path)
	h.respond(c, http.StatusOK, req, err)
}

func (h *Handler) crossValidate(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, err := h.engine.CrossValidate(c.Request.Context(), id)
	h.respond(c, http.StatusOK, req, err)
}

func (h *Handler) submitLive(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var body pathRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.engine.SubmitLive(c.Request.Context(), id, body.Path)
	h.respond(c, http.StatusOK, req, err)
}

func (h *Handler) finalize(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	req, err := h.engine.Finalize(c.Request.Context(), id)
	h.respond(c, http.StatusOK, req, err)
}

type approveRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
}

func (h *Handler) approve(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var body approveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.engine.Approve(c.Request.Context(), id, body.ReviewerID)
	h.respond(c, http.StatusOK, req, err)
}

type rejectRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
	Reason     string `json:"reason"`
}

func (h *Handler) reject(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var body rejectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.engine.Reject(c.Request.Context(), id, body.ReviewerID, body.Reason)
	h.respond(c, http.StatusOK, req, err)
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return uuid.UUID{}, false
	}
	return id, true
}

// respond maps a domain.Kind to an HTTP status; every other error is a 500.
func (h *Handler) respond(c *gin.Context, okStatus int, req *domain.VerificationRequest, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case err == domain.ErrNotFound:
			status = http.StatusNotFound
		case err == domain.ErrIllegalState:
			status = http.StatusConflict
		case domain.IsKind(err, domain.KindInput):
			status = http.StatusBadRequest
		case domain.IsKind(err, domain.KindTransient):
			status = http.StatusServiceUnavailable
		}
		h.log.WithError(err).Warn("verification request failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(okStatus, req)
}
