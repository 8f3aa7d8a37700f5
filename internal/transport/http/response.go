package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// successResponse 写操作成功的统一响应
type successResponse struct {
	Success bool `json:"success"`
}

// errorResponse 统一错误响应，只携带静态提示信息
type errorResponse struct {
	Error string `json:"error"`
}

// Success 成功响应（200）
func Success(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse{Success: true})
}

// JSON 直接返回数据（200）
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// Unauthorized 未认证错误（401）
func Unauthorized(c *gin.Context, msg string) {
	Error(c, http.StatusUnauthorized, msg)
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, msg)
}

// Error 通用错误响应
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, errorResponse{Error: msg})
}
