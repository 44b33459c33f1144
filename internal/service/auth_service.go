package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/attestra/attestra-backend/internal/config"
	"github.com/attestra/attestra-backend/internal/model"
)

// Common auth errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionAlreadyActive = errors.New("another login is already active, contact an administrator to reset")
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	UserID int        `json:"user_id"`
	OrgID  int        `json:"org_id"`
	Role   model.Role `json:"role"`
}

// AuthService handles authentication, JWT, and login sessions.
// Candidates are limited to a single active device: the token JTI is
// pinned in Redis at login and every request checks it, so a second
// login during a timed attempt is rejected instead of hijacking it.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateToken creates a JWT for the user. Candidate logins register
// the session JTI in Redis and are rejected while another one is live;
// manager and admin logins are not device-limited.
func (s *AuthService) GenerateToken(ctx context.Context, user *model.User) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	if user.Role == model.RoleCandidate {
		sessionKey := config.CacheKey.UserLoginSessionKey(user.ID)

		existing, err := s.rdb.Get(ctx, sessionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("check login session: %w", err)
		}
		if existing != "" {
			return "", ErrSessionAlreadyActive
		}

		if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
			return "", fmt.Errorf("store login session: %w", err)
		}
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		UserID: user.ID,
		OrgID:  user.OrgID,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateLoginSession checks that the token's JTI matches the active
// candidate session in Redis.
func (s *AuthService) ValidateLoginSession(ctx context.Context, userID int, jti string) error {
	sessionKey := config.CacheKey.UserLoginSessionKey(userID)
	stored, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errors.New("no active login session")
		}
		return fmt.Errorf("check login session: %w", err)
	}
	if stored != jti {
		return errors.New("login session invalidated")
	}
	return nil
}

// ResetLoginSession removes a candidate's login session from Redis,
// allowing a new device to log in.
func (s *AuthService) ResetLoginSession(ctx context.Context, userID int) error {
	sessionKey := config.CacheKey.UserLoginSessionKey(userID)
	return s.rdb.Del(ctx, sessionKey).Err()
}
