package domain

import (
	"errors"
	"fmt"
)

// 存储与校验错误
//
// 读取失败（文件缺失、内容不是 JSON 数组）归入 ErrStorageRead，
// 写入失败归入 ErrStorageWrite，输入不合法归入 ErrValidation。
var (
	ErrStorageRead  = errors.New("storage read failed")
	ErrStorageWrite = errors.New("storage write failed")
	ErrValidation   = errors.New("validation failed")

	ErrCollectionNameRequired = fmt.Errorf("%w: collection name is required", ErrValidation)
	ErrInvalidCollectionName  = fmt.Errorf("%w: invalid collection name", ErrValidation)
	ErrCollectionExists       = fmt.Errorf("%w: collection already exists", ErrValidation)
	ErrIndexOutOfRange        = fmt.Errorf("%w: record index out of range", ErrValidation)
)
