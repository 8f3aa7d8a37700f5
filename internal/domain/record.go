package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// UnassignedTag 未填写 Service 字段的记录归入的分组名
const UnassignedTag = "Без сервиса"

// Record 集合记录需要满足的约束
//
// R 为记录的值类型本身，Derived 返回重新推导可用性后的副本，
// 保证所有写入路径都经过同一条 DeriveAvailability 规则。
type Record[R any] interface {
	// Derived 返回按 Warranty 重新计算 Availability 后的记录副本
	Derived() R
	// Available 返回记录当前存储的可用性
	Available() bool
	// Tag 返回记录所属的服务标签
	Tag() string
	// SearchFields 返回参与全文搜索的字符串字段
	SearchFields() []string
}

// DeriveAvailability 根据保修字段推导可用性：为空或仅包含空白字符即为可用
func DeriveAvailability(warranty string) bool {
	return strings.TrimSpace(warranty) == ""
}

// TempEmailRecord 临时邮箱凭据记录
type TempEmailRecord struct {
	Email                 string `json:"Email"`
	MailAddressCredential string `json:"MailAddressCredential"`
	AutoLoginEmailLink    string `json:"AutoLoginEmailLink"`
	RegistrationDate      string `json:"RegistrationDate"`
	Availability          bool   `json:"Availability"`
	Warranty              string `json:"Warranty"`
	Service               string `json:"Service"`
}

// UnmarshalJSON 兼容历史数据中布尔或空值形式的 Warranty
func (r *TempEmailRecord) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain TempEmailRecord
	aux := struct {
		*plain
		Warranty json.RawMessage `json:"Warranty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Warranty == nil {
		return nil
	}
	warranty, err := looseString(aux.Warranty)
	if err != nil {
		return err
	}
	r.Warranty = warranty
	return nil
}

// Derived 实现 Record 接口
func (r TempEmailRecord) Derived() TempEmailRecord {
	r.Availability = DeriveAvailability(r.Warranty)
	return r
}

// Available 实现 Record 接口
func (r TempEmailRecord) Available() bool { return r.Availability }

// Tag 实现 Record 接口
func (r TempEmailRecord) Tag() string { return tagOf(r.Service) }

// SearchFields 实现 Record 接口
func (r TempEmailRecord) SearchFields() []string {
	return []string{
		r.Email,
		r.MailAddressCredential,
		r.AutoLoginEmailLink,
		r.RegistrationDate,
		r.Warranty,
		r.Service,
	}
}

// ServiceAccountRecord 服务账号记录（密码按原样明文保存）
type ServiceAccountRecord struct {
	Email            string `json:"Email"`
	Password         string `json:"Password"`
	Availability     bool   `json:"Availability"`
	RegistrationDate string `json:"RegistrationDate"`
	ActiveUntil      string `json:"ActiveUntil"`
	Warranty         string `json:"Warranty"`
	Service          string `json:"Service,omitempty"`
}

// UnmarshalJSON 兼容历史数据中布尔或空值形式的 Warranty
func (r *ServiceAccountRecord) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain ServiceAccountRecord
	aux := struct {
		*plain
		Warranty json.RawMessage `json:"Warranty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Warranty == nil {
		return nil
	}
	warranty, err := looseString(aux.Warranty)
	if err != nil {
		return err
	}
	r.Warranty = warranty
	return nil
}

// Derived 实现 Record 接口
func (r ServiceAccountRecord) Derived() ServiceAccountRecord {
	r.Availability = DeriveAvailability(r.Warranty)
	return r
}

// Available 实现 Record 接口
func (r ServiceAccountRecord) Available() bool { return r.Availability }

// Tag 实现 Record 接口
func (r ServiceAccountRecord) Tag() string { return tagOf(r.Service) }

// SearchFields 实现 Record 接口
func (r ServiceAccountRecord) SearchFields() []string {
	return []string{
		r.Email,
		r.Password,
		r.RegistrationDate,
		r.ActiveUntil,
		r.Warranty,
		r.Service,
	}
}

func tagOf(service string) string {
	if service == "" {
		return UnassignedTag
	}
	return service
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// looseString 将字符串、布尔、数字或 null 统一为字符串；false 与 null 视为空
func looseString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", err
		}
		if !b {
			return "", nil
		}
		return strconv.FormatBool(b), nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}
