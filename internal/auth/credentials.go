package auth

import (
	"context"
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"accountdesk/backend/internal/domain"
)

// CredentialStore 校验操作员凭据
type CredentialStore interface {
	Verify(ctx context.Context, username, password string) (domain.Operator, error)
}

// StaticCredentials 配置文件中的单一操作员账号
//
// 用户名按常量时间比较，密码与 bcrypt 哈希比较。
type StaticCredentials struct {
	username     string
	passwordHash string
}

// NewStaticCredentials 创建静态凭据
func NewStaticCredentials(username, passwordHash string) *StaticCredentials {
	return &StaticCredentials{
		username:     username,
		passwordHash: passwordHash,
	}
}

// Verify 实现 CredentialStore 接口
func (c *StaticCredentials) Verify(_ context.Context, username, password string) (domain.Operator, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	// 用户名不匹配时也执行哈希比较
	passOK := CheckPassword(password, c.passwordHash)
	if !userOK || !passOK {
		return domain.Operator{}, ErrInvalidCredentials
	}
	return domain.Operator{Username: c.username, Role: domain.RoleOperator}, nil
}

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
