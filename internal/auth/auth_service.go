package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnknownMember = errors.New("unknown team member")
	ErrNoSecret      = errors.New("jwt secret is required")
)

const tokenTypeRecruiter = "recruiter"

// TokenService 签发并校验招聘团队成员的 HS256 令牌，令牌中的成员名即笔记作者。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	roster []string
	now    func() time.Time
}

// TokenClaims 表示 JWT 中的业务字段，便于中间件读取成员信息。
type TokenClaims struct {
	Member    string `json:"member"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// NewTokenService 构造服务实例；roster 为空时接受任意成员名。
func NewTokenService(secret string, ttl time.Duration, roster []string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		roster: roster,
		now:    time.Now,
	}, nil
}

// Issue 为成员签发令牌。成员名按名册规范化大小写。
func (s *TokenService) Issue(member string) (string, error) {
	name, err := s.canonical(member)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := TokenClaims{
		Member:    name,
		TokenType: tokenTypeRecruiter,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) canonical(member string) (string, error) {
	member = strings.TrimSpace(member)
	if member == "" {
		return "", ErrUnknownMember
	}
	if len(s.roster) == 0 {
		return member, nil
	}
	for _, name := range s.roster {
		if strings.EqualFold(name, member) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMember, member)
}

// ValidateToken 解析并验证 JWT。
func (s *TokenService) ValidateToken(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.TokenType != tokenTypeRecruiter || claims.Member == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// TTL 暴露令牌有效期。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
