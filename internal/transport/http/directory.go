package httptransport

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/monitoring"
	"accountdesk/backend/internal/service"
)

// DirectoryHandler 处理集合目录接口
type DirectoryHandler struct {
	directory *service.Directory
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewDirectoryHandler 创建集合目录处理器
func NewDirectoryHandler(directory *service.Directory, metrics *monitoring.Metrics, log *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, metrics: metrics, log: log}
}

type createServiceRequest struct {
	ServiceName string `json:"serviceName"`
}

// List 返回 {services: [...]}，读取失败时降级为只包含服务账号集合
func (h *DirectoryHandler) List(c *gin.Context) {
	JSON(c, gin.H{"services": h.directory.List(c.Request.Context())})
}

// Create 新建空集合
func (h *DirectoryHandler) Create(c *gin.Context) {
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		InternalError(c, MsgServiceCreateErr)
		return
	}

	name := strings.TrimSpace(req.ServiceName)
	if name == "" {
		BadRequest(c, MsgServiceRequired)
		return
	}

	err := h.directory.Create(c.Request.Context(), name)
	switch {
	case err == nil:
		JSON(c, gin.H{"success": true, "serviceName": name})
	case errors.Is(err, domain.ErrCollectionExists):
		BadRequest(c, MsgServiceExists)
	case errors.Is(err, domain.ErrCollectionNameRequired):
		BadRequest(c, MsgServiceRequired)
	case errors.Is(err, domain.ErrValidation):
		BadRequest(c, MsgServiceInvalid)
	default:
		_ = c.Error(err)
		if op := storageOp(err); op != "" && h.metrics != nil {
			h.metrics.RecordStorageError(op)
		}
		h.log.Error("failed to create collection", zap.String("collection", name), zap.Error(err))
		Error(c, http.StatusInternalServerError, MsgServiceCreateErr)
	}
}
