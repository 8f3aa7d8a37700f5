package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"普通名称", "Netflix", nil},
		{"固定集合", "ServiceAccounts", nil},
		{"数字与标点", "Disney+ 2", ErrInvalidCollectionName},
		{"空格与连字符", "Yandex Plus-2024", nil},
		{"西里尔字母名称", "Кинопоиск", nil},
		{"带点名称", "mail.ru", nil},
		{"最大长度", strings.Repeat("a", 64), nil},
		{"超长", strings.Repeat("a", 65), ErrInvalidCollectionName},
		{"空名称", "", ErrCollectionNameRequired},
		{"仅空白", "   ", ErrCollectionNameRequired},
		{"上级目录穿越", "../etc/passwd", ErrInvalidCollectionName},
		{"嵌套路径", "a/b", ErrInvalidCollectionName},
		{"Windows 分隔符", `a\b`, ErrInvalidCollectionName},
		{"以点开头", ".hidden", ErrInvalidCollectionName},
		{"空字节", "a\x00b", ErrInvalidCollectionName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}
