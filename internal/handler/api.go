package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/middleware"
	"github.com/obiwankenobi699/HoneyPot/internal/models"
	"github.com/obiwankenobi699/HoneyPot/internal/service"
)

// Honeypot is the conversation service behind the API.
type Honeypot interface {
	Process(ctx context.Context, req *models.MessageRequest) (*models.MessageResponse, error)
	ProcessDetailed(ctx context.Context, req *models.MessageRequest) (*models.DetailedMessageResponse, error)
	Session(ctx context.Context, id string) (*models.DetailedMessageResponse, error)
	Sessions(ctx context.Context) ([]*models.Session, error)
}

// DeliveryLister reads the callback audit log.
type DeliveryLister interface {
	ListDeliveries(ctx context.Context, limit int) ([]models.DeliveryRecord, error)
}

// Authenticator logs the operator in and validates tokens.
type Authenticator interface {
	middleware.TokenParser
	Login(username, password string) (string, time.Time, error)
}

// Handler handles HTTP requests
type Handler struct {
	honeypot   Honeypot
	deliveries DeliveryLister
	auth       Authenticator
	apiKey     string
	logger     *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(honeypot Honeypot, deliveries DeliveryLister, auth Authenticator, apiKey string, logger *zap.Logger) *Handler {
	return &Handler{
		honeypot:   honeypot,
		deliveries: deliveries,
		auth:       auth,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Honeypot endpoints
		keyed := api.Group("", middleware.APIKeyMiddleware(h.apiKey))
		keyed.POST("/honeypot/message", h.HandleMessage)
		keyed.POST("/honeypot/analyze", h.AnalyzeMessage)
		keyed.GET("/sessions/:id", h.GetSession)

		// Operator endpoints
		api.POST("/admin/login", h.Login)
		admin := api.Group("/admin", middleware.AuthMiddleware(h.auth, h.logger))
		admin.GET("/sessions", h.ListSessions)
		admin.GET("/callbacks", h.ListCallbacks)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// HandleMessage processes one scammer message and returns the persona reply
func (h *Handler) HandleMessage(c *gin.Context) {
	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.honeypot.Process(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// AnalyzeMessage processes a message and returns the detailed tracker view
func (h *Handler) AnalyzeMessage(c *gin.Context) {
	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.honeypot.ProcessDetailed(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetSession returns the current state of one session
func (h *Handler) GetSession(c *gin.Context) {
	resp, err := h.honeypot.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login issues an operator token
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// ListSessions returns every session without message history
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.honeypot.Sessions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	for _, s := range sessions {
		s.History = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// ListCallbacks returns recent callback deliveries
func (h *Handler) ListCallbacks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	records, err := h.deliveries.ListDeliveries(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"callbacks": records,
		"count":     len(records),
	})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "honeypot",
	})
}

// respondError maps domain errors to HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrAdminDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin access is not configured"})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
