package domain

import (
	"regexp"
	"strings"
)

// MaxCollectionNameLength 集合名称最大长度（按字符计）
const MaxCollectionNameLength = 64

// 集合名称白名单：字母或数字开头，后续允许字母、数字、空格、下划线、点和连字符
var collectionNameRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _.\-]{0,63}$`)

// ValidateCollectionName 校验集合名称
//
// 名称会直接映射为存储路径（文件名或表主键），因此只接受白名单字符，
// 路径分隔符、".." 前缀以及控制字符都会被拒绝。
func ValidateCollectionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrCollectionNameRequired
	}
	if !collectionNameRegex.MatchString(name) {
		return ErrInvalidCollectionName
	}
	return nil
}
