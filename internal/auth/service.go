package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"accountdesk/backend/internal/auth/jwt"
	"accountdesk/backend/internal/domain"
)

var (
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated 未提供有效会话
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionRevoked 会话已注销
	ErrSessionRevoked = errors.New("session revoked")
)

// RevocationStore 已注销会话列表（Redis 或本地缓存）
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Service 认证服务：凭据校验通过后签发服务端可验证的会话令牌
type Service struct {
	credentials CredentialStore
	tokens      *jwt.Manager
	revocations RevocationStore
	logger      *zap.Logger
}

// NewService 创建认证服务
func NewService(credentials CredentialStore, tokens *jwt.Manager, revocations RevocationStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		credentials: credentials,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// Login 校验凭据并签发会话
func (s *Service) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	operator, err := s.credentials.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.tokens.Issue(operator.Username, operator.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("operator logged in",
		zap.String("username", operator.Username),
		zap.String("session_id", claims.ID),
	)
	return sessionFromClaims(token, claims), nil
}

// Authenticate 验证会话令牌：签名、有效期以及是否已注销
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	return sessionFromClaims(token, claims), nil
}

// Logout 注销会话直到其原本的过期时间
func (s *Service) Logout(ctx context.Context, session *domain.Session) error {
	if err := s.revocations.Revoke(ctx, session.ID, session.ExpiresAt); err != nil {
		return err
	}
	s.logger.Info("operator logged out",
		zap.String("username", session.Operator.Username),
		zap.String("session_id", session.ID),
	)
	return nil
}

// SessionTTL 会话有效期
func (s *Service) SessionTTL() time.Duration {
	return s.tokens.Expiry()
}

func sessionFromClaims(token string, claims *jwt.Claims) *domain.Session {
	session := &domain.Session{
		ID:       claims.ID,
		Operator: domain.Operator{Username: claims.Username, Role: claims.Role},
		Token:    token,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session
}
