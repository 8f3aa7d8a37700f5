package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accountdesk/backend/internal/auth"
	"accountdesk/backend/internal/auth/jwt"
	"accountdesk/backend/internal/domain"
)

const (
	// SessionCookie 会话 Cookie 名称
	SessionCookie = "session"

	sessionContextKey = "session"
)

// SessionAuth 会话认证中间件
type SessionAuth struct {
	auth   *auth.Service
	logger *zap.Logger
}

// NewSessionAuth 创建会话认证中间件
func NewSessionAuth(authService *auth.Service, logger *zap.Logger) *SessionAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionAuth{auth: authService, logger: logger}
}

// RequireSession 要求请求携带有效会话
func (sa *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sa.auth.Authenticate(c.Request.Context(), ExtractToken(c))
		if err != nil {
			if isSessionError(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			sa.logger.Error("session check failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session check unavailable"})
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// SessionFromContext 取出 RequireSession 写入的会话
func SessionFromContext(c *gin.Context) (*domain.Session, bool) {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*domain.Session)
	return session, ok
}

// ExtractToken 从 Cookie 或 Authorization 头中提取会话令牌
func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return ""
}

func isSessionError(err error) bool {
	return errors.Is(err, auth.ErrUnauthenticated) ||
		errors.Is(err, auth.ErrSessionRevoked) ||
		errors.Is(err, jwt.ErrInvalidToken) ||
		errors.Is(err, jwt.ErrExpiredToken)
}
