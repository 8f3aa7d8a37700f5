package domain

import "time"

// RoleOperator 仪表盘唯一的角色
const RoleOperator = "operator"

// Operator 已通过凭据校验的仪表盘操作员
type Operator struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Session 服务端签发的会话
type Session struct {
	ID        string    `json:"id"`
	Operator  Operator  `json:"operator"`
	Token     string    `json:"-"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
