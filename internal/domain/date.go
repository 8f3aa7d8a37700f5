package domain

import "time"

// 记录中日期字段可能出现的格式
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
}

// FormatDate 将记录中的日期渲染为 dd.mm.yyyy，无法解析时原样返回
func FormatDate(value string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("02.01.2006")
		}
	}
	return value
}
