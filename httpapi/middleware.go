package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authcore"
)

// authHeader is the header carrying the service token.
const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// ServiceAuth returns middleware requiring a valid service token. On
// success the verified service identity is recorded on the request
// context for downstream handlers and audit.
func ServiceAuth(verifier authcore.TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			writeError(c, http.StatusUnauthorized, authcore.KindUnauthenticated, err.Error())
			return
		}

		serviceID, err := verifier.VerifyServiceToken(c.Request.Context(), token)
		if err != nil {
			kind := authcore.Kind(err)
			logger.Warn("service token rejected",
				zap.String("path", c.FullPath()),
				zap.String("kind", kind.String()),
			)
			writeError(c, statusFromKind(kind), kind, err.Error())
			return
		}

		c.Request = c.Request.WithContext(
			authcore.WithServiceID(c.Request.Context(), serviceID),
		)
		c.Next()
	}
}

// RequestLogger returns middleware logging one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		}
		if serviceID, ok := authcore.ServiceIDFromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("service_id", serviceID))
		}
		logger.Info("request", fields...)
	}
}

// extractToken pulls the bearer token from the Authorization header.
func extractToken(c *gin.Context) (string, error) {
	value := c.GetHeader(authHeader)
	if value == "" {
		return "", errMissingToken
	}
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", errInvalidTokenFormat
	}
	token := strings.TrimPrefix(value, bearerPrefix)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
