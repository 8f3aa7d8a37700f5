package httptransport

import (
	"errors"
	"net/http"

	"accountdesk/backend/internal/domain"
)

// 通用错误消息
const (
	MsgInvalidRequest   = "Invalid request"
	MsgInvalidIndex     = "Invalid record index"
	MsgInvalidQuery     = "Invalid query parameters"
	MsgInternalError    = "Internal server error"
	MsgUnauthorized     = "Unauthorized"
	MsgInvalidLogin     = "Invalid username or password"
	MsgLoginFailed      = "Failed to log in"
	MsgLogoutFailed     = "Failed to log out"
	MsgReservedName     = "Collection is served by a dedicated endpoint"
	MsgServiceRequired  = "Service name is required"
	MsgServiceExists    = "Service already exists"
	MsgServiceInvalid   = "Invalid service name"
	MsgServiceCreateErr = "Failed to create service"
)

// collectionMessages 集合接口各操作失败时的静态提示
type collectionMessages struct {
	Read   string
	Add    string
	Update string
	Delete string
}

var (
	serviceAccountMessages = collectionMessages{
		Read:   "Failed to read data",
		Add:    "Failed to add account",
		Update: "Failed to update account",
		Delete: "Failed to delete account",
	}
	tempEmailMessages = collectionMessages{
		Read:   "Failed to read data",
		Add:    "Failed to add email",
		Update: "Failed to update email",
		Delete: "Failed to delete email",
	}
)

// statusFor 返回错误对应的 HTTP 状态码
//
// validationStatus 为 ErrValidation 族错误使用的状态码；
// 原有的四个集合接口所有失败都返回 500。
func statusFor(err error, validationStatus int) int {
	if errors.Is(err, domain.ErrValidation) {
		return validationStatus
	}
	return http.StatusInternalServerError
}

// storageOp 存储错误在指标中的操作标签，非存储错误返回空
func storageOp(err error) string {
	switch {
	case errors.Is(err, domain.ErrStorageRead):
		return "read"
	case errors.Is(err, domain.ErrStorageWrite):
		return "write"
	default:
		return ""
	}
}
