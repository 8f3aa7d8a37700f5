package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accountdesk/backend/internal/domain"
	"accountdesk/backend/internal/listview"
	"accountdesk/backend/internal/monitoring"
	"accountdesk/backend/internal/service"
)

// CollectionHandler 处理某一种记录形状的集合接口
//
// collection 非空时处理固定集合，为空时集合名称取自路径参数 :name。
type CollectionHandler[R domain.Record[R]] struct {
	records          *service.Records[R]
	collection       string
	reserved         map[string]struct{}
	messages         collectionMessages
	pageSize         int
	validationStatus int
	metrics          *monitoring.Metrics
	log              *zap.Logger
}

type updateRequest struct {
	Index *int            `json:"index"`
	Data  json.RawMessage `json:"data"`
}

type deleteRequest struct {
	Index *int `json:"index"`
}

func newFixedCollectionHandler[R domain.Record[R]](records *service.Records[R], collection string, messages collectionMessages, pageSize int, metrics *monitoring.Metrics, log *zap.Logger) *CollectionHandler[R] {
	return &CollectionHandler[R]{
		records:          records,
		collection:       collection,
		messages:         messages,
		pageSize:         pageSize,
		validationStatus: http.StatusInternalServerError,
		metrics:          metrics,
		log:              log,
	}
}

func newNamedCollectionHandler[R domain.Record[R]](records *service.Records[R], reserved []string, messages collectionMessages, pageSize int, metrics *monitoring.Metrics, log *zap.Logger) *CollectionHandler[R] {
	h := &CollectionHandler[R]{
		records:          records,
		reserved:         make(map[string]struct{}, len(reserved)),
		messages:         messages,
		pageSize:         pageSize,
		validationStatus: http.StatusBadRequest,
		metrics:          metrics,
		log:              log,
	}
	for _, name := range reserved {
		h.reserved[name] = struct{}{}
	}
	return h
}

// List 返回集合的完整数组
func (h *CollectionHandler[R]) List(c *gin.Context) {
	collection, ok := h.target(c)
	if !ok {
		return
	}

	records, err := h.records.Documents(c.Request.Context(), collection)
	if err != nil {
		h.fail(c, err, h.messages.Read, h.validationStatus)
		return
	}
	JSON(c, records)
}

// Add 追加一条记录
//
// 固定集合要求文件已存在；命名集合在不存在时先创建。
func (h *CollectionHandler[R]) Add(c *gin.Context) {
	collection, ok := h.target(c)
	if !ok {
		return
	}

	var record R
	if err := c.ShouldBindJSON(&record); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrValidation, err), h.messages.Add, h.validationStatus)
		return
	}

	ctx := c.Request.Context()
	var err error
	if h.collection != "" {
		err = h.records.Add(ctx, collection, record)
	} else {
		_, err = h.records.AddTo(ctx, collection, record)
	}
	if err != nil {
		h.fail(c, err, h.messages.Add, h.validationStatus)
		return
	}
	Success(c)
}

// Update 以 {index, data} 整体替换指定下标的记录
func (h *CollectionHandler[R]) Update(c *gin.Context) {
	collection, ok := h.target(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil || len(req.Data) == 0 {
		h.fail(c, fmt.Errorf("%w: index and data are required", domain.ErrValidation), h.messages.Update, h.validationStatus)
		return
	}

	var record R
	if err := json.Unmarshal(req.Data, &record); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrValidation, err), h.messages.Update, h.validationStatus)
		return
	}

	if err := h.records.Update(c.Request.Context(), collection, *req.Index, record); err != nil {
		h.fail(c, err, h.messages.Update, h.validationStatus)
		return
	}
	Success(c)
}

// Delete 以 {index} 删除指定下标的记录
func (h *CollectionHandler[R]) Delete(c *gin.Context) {
	collection, ok := h.target(c)
	if !ok {
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		h.fail(c, fmt.Errorf("%w: index is required", domain.ErrValidation), h.messages.Delete, h.validationStatus)
		return
	}

	if err := h.records.Delete(c.Request.Context(), collection, *req.Index); err != nil {
		h.fail(c, err, h.messages.Delete, h.validationStatus)
		return
	}
	Success(c)
}

// Patch 将请求体中的字段合并到 :index 处的记录，返回保存后的记录
func (h *CollectionHandler[R]) Patch(c *gin.Context) {
	collection, ok := h.target(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		BadRequest(c, MsgInvalidIndex)
		return
	}

	var fields map[string]json.RawMessage
	if err := c.ShouldBindJSON(&fields); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	record, err := h.records.Patch(c.Request.Context(), collection, index, fields)
	if err != nil {
		h.fail(c, err, h.messages.Update, http.StatusBadRequest)
		return
	}
	JSON(c, gin.H{"success": true, "index": index, "data": record})
}

// View 返回经过搜索、标签过滤、排序和分页后的列表
//
// 查询参数: q, service, page, pageSize
func (h *CollectionHandler[R]) View(c *gin.Context) {
	collection, ok := h.target(c)
	if !ok {
		return
	}

	params, err := h.viewParams(c)
	if err != nil {
		BadRequest(c, MsgInvalidQuery)
		return
	}

	result, err := h.records.View(c.Request.Context(), collection, params)
	if err != nil {
		h.fail(c, err, h.messages.Read, h.validationStatus)
		return
	}
	JSON(c, result)
}

func (h *CollectionHandler[R]) viewParams(c *gin.Context) (listview.Params, error) {
	params := listview.Params{
		Query:    c.Query("q"),
		Tag:      c.Query("service"),
		PageSize: h.pageSize,
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return params, err
		}
		params.Page = page
	}
	if raw := c.Query("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size > 100 {
			return params, fmt.Errorf("invalid page size %q", raw)
		}
		params.PageSize = size
	}
	return params.Normalize(), nil
}

// target 解析本次请求的集合名称
func (h *CollectionHandler[R]) target(c *gin.Context) (string, bool) {
	if h.collection != "" {
		return h.collection, true
	}

	name := c.Param("name")
	if _, reserved := h.reserved[name]; reserved {
		BadRequest(c, MsgReservedName)
		return "", false
	}
	return name, true
}

// fail 记录错误并返回静态提示
func (h *CollectionHandler[R]) fail(c *gin.Context, err error, msg string, validationStatus int) {
	_ = c.Error(err)

	if op := storageOp(err); op != "" && h.metrics != nil {
		h.metrics.RecordStorageError(op)
	}

	status := statusFor(err, validationStatus)
	if status >= http.StatusInternalServerError {
		h.log.Error("collection request failed",
			zap.String("collection", h.collection),
			zap.String("name", c.Param("name")),
			zap.String("method", c.Request.Method),
			zap.Error(err))
	}
	Error(c, status, msg)
}
