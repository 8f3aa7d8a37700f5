// Package codec 负责集合 JSON 数组载荷的编解码。
//
// 文件与数据库后端共用同一份格式：两空格缩进、不转义 HTML 字符，
// 与管理面板历史数据文件保持一致。
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"accountdesk/backend/internal/domain"
)

// EmptyArray 新建集合时写入的内容
var EmptyArray = []byte("[]\n")

// Encode 将文档数组编码为带缩进的 JSON
func Encode(docs []json.RawMessage) ([]byte, error) {
	if docs == nil {
		docs = []json.RawMessage{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return nil, fmt.Errorf("%w: encode documents: %v", domain.ErrStorageWrite, err)
	}
	return buf.Bytes(), nil
}

// Decode 解析集合载荷，内容必须是 JSON 数组
func Decode(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: payload is not a JSON array", domain.ErrStorageRead)
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageRead, err)
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	return docs, nil
}

// IsNull 判断文档是否为 null 空位
func IsNull(doc json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(doc), []byte("null"))
}

// Marshal 将单条记录编码为紧凑 JSON（不转义 HTML 字符）
func Marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
