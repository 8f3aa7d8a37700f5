package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accountdesk/backend/internal/auth"
	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/middleware"
	"accountdesk/backend/internal/monitoring"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService  *auth.Service
	cookieSecure bool
	metrics      *monitoring.Metrics
	log          *zap.Logger
}

// NewAuthHandler 创建新的认证处理器实例
//
// 参数:
//   - authService: 认证业务服务
//   - cookieSecure: 会话 Cookie 是否只在 HTTPS 下发送
func NewAuthHandler(authService *auth.Service, cookieSecure bool, metrics *monitoring.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieSecure: cookieSecure,
		metrics:      metrics,
		log:          log,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Success bool            `json:"success"`
	Token   string          `json:"token,omitempty"`
	Session *domain.Session `json:"session"`
}

// Login 校验凭据，签发会话并写入 HttpOnly Cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.recordLogin("failure")
			h.log.Warn("login rejected",
				zap.String("username", req.Username),
				zap.String("ip", c.ClientIP()))
			Unauthorized(c, MsgInvalidLogin)
			return
		}
		h.recordLogin("error")
		h.log.Error("failed to log in", zap.Error(err))
		InternalError(c, MsgLoginFailed)
		return
	}

	h.recordLogin("success")
	h.setSessionCookie(c, session.Token, int(h.authService.SessionTTL().Seconds()))
	c.JSON(http.StatusOK, sessionResponse{Success: true, Token: session.Token, Session: session})
}

// Logout 注销当前会话并清除 Cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		Unauthorized(c, MsgUnauthorized)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), session); err != nil {
		h.log.Error("failed to revoke session", zap.String("session_id", session.ID), zap.Error(err))
		InternalError(c, MsgLogoutFailed)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLogout()
	}
	h.setSessionCookie(c, "", -1)
	Success(c)
}

// Session 返回当前会话
func (h *AuthHandler) Session(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		Unauthorized(c, MsgUnauthorized)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Success: true, Session: session})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, value, maxAge, "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) recordLogin(result string) {
	if h.metrics != nil {
		h.metrics.RecordLogin(result)
	}
}
