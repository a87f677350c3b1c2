// Package httpapi exposes the authcore service over HTTP: token
// issuance for registered services, and single and batch permission
// checks for authenticated service callers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authcore"
)

// Server holds the HTTP surface of the authorization service.
type Server struct {
	service authcore.Service
	logger  *zap.Logger
}

// Options configures the HTTP server.
type Options struct {
	Logger *zap.Logger

	// Middleware is appended to the router before the API routes,
	// after recovery (e.g. request logging, rate limiting).
	Middleware []gin.HandlerFunc
}

// NewServer creates the HTTP surface for the given service.
func NewServer(service authcore.Service, opts ...Options) *Server {
	var cfg Options
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{service: service, logger: cfg.Logger}
}

// Router builds the gin engine with all routes registered. The check
// endpoints require a verified service token; issuance and health do
// not.
func (s *Server) Router(opts ...Options) *gin.Engine {
	var cfg Options
	if len(opts) > 0 {
		cfg = opts[0]
	}

	router := gin.New()
	router.Use(gin.Recovery())
	for _, mw := range cfg.Middleware {
		router.Use(mw)
	}

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	v1.POST("/service-tokens", s.handleIssueToken)

	checks := v1.Group("")
	checks.Use(ServiceAuth(s.service, s.logger))
	checks.POST("/check", s.handleCheck)
	checks.POST("/batch-check", s.handleBatchCheck)

	return router
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// issueTokenRequest is the issuance request body.
type issueTokenRequest struct {
	ServiceID     string `json:"service_id" binding:"required"`
	ServiceSecret string `json:"service_secret" binding:"required"`
}

// issueTokenResponse is the issuance response body.
type issueTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// handleIssueToken mints a service token for a registered service.
func (s *Server) handleIssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, authcore.KindInvalidRequest, err.Error())
		return
	}

	tok, err := s.service.IssueServiceToken(c.Request.Context(), req.ServiceID, req.ServiceSecret)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, issueTokenResponse{
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// checkRequest is the single check request body.
type checkRequest struct {
	UserID     string            `json:"user_id" binding:"required"`
	Roles      []string          `json:"roles" binding:"required"`
	TenantID   string            `json:"tenant_id" binding:"required"`
	Resource   string            `json:"resource" binding:"required"`
	Action     string            `json:"action" binding:"required"`
	Attributes map[string]string `json:"attributes"`
}

// handleCheck answers a single permission check.
func (s *Server) handleCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, authcore.KindInvalidRequest, err.Error())
		return
	}

	principal := authcore.PrincipalContext{
		UserID:   req.UserID,
		Roles:    req.Roles,
		TenantID: req.TenantID,
	}
	permission := authcore.PermissionRequest{
		Resource:   req.Resource,
		Action:     req.Action,
		Attributes: req.Attributes,
	}
	if err := principal.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, authcore.KindInvalidRequest, err.Error())
		return
	}
	if err := permission.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, authcore.KindInvalidRequest, err.Error())
		return
	}

	decision := s.service.Check(c.Request.Context(), principal, permission)
	c.JSON(http.StatusOK, decision)
}

// batchCheckRequest is the batch check request body. Items are answered
// positionally: result i corresponds to item i.
type batchCheckRequest struct {
	UserID   string           `json:"user_id" binding:"required"`
	Roles    []string         `json:"roles" binding:"required"`
	TenantID string           `json:"tenant_id" binding:"required"`
	Items    []batchCheckItem `json:"items"`
}

type batchCheckItem struct {
	Resource   string            `json:"resource"`
	Action     string            `json:"action"`
	Attributes map[string]string `json:"attributes"`
}

// batchCheckResponse carries one decision per requested item.
type batchCheckResponse struct {
	Results []authcore.Decision `json:"results"`
}

// handleBatchCheck answers many checks for one principal in one round
// trip.
func (s *Server) handleBatchCheck(c *gin.Context) {
	var req batchCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, authcore.KindInvalidRequest, err.Error())
		return
	}

	principal := authcore.PrincipalContext{
		UserID:   req.UserID,
		Roles:    req.Roles,
		TenantID: req.TenantID,
	}
	items := make([]authcore.PermissionRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = authcore.PermissionRequest{
			Resource:   item.Resource,
			Action:     item.Action,
			Attributes: item.Attributes,
		}
	}
	if err := authcore.ValidateBatch(principal, items); err != nil {
		writeError(c, http.StatusBadRequest, authcore.KindInvalidRequest, err.Error())
		return
	}

	results, err := s.service.BatchCheck(c.Request.Context(), principal, items)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchCheckResponse{Results: results})
}

// writeServiceError maps service errors onto HTTP responses.
func (s *Server) writeServiceError(c *gin.Context, err error) {
	kind := authcore.Kind(err)
	status := statusFromKind(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	writeError(c, status, kind, err.Error())
}

// statusFromKind maps error kinds onto HTTP status codes.
func statusFromKind(kind authcore.ErrorKind) int {
	switch kind {
	case authcore.KindUnauthenticated,
		authcore.KindUnknownService,
		authcore.KindTokenExpired,
		authcore.KindInvalidSignature,
		authcore.KindTokenRevoked:
		return http.StatusUnauthorized
	case authcore.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, kind authcore.ErrorKind, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: kind.String(), Error: message})
}
