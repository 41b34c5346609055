package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"transcribot/internal/config"
)

// AuthUsecase authenticates the single operator account configured for the
// HTTP API. The configured password is hashed once at startup so only the
// hash stays in memory.
type AuthUsecase struct {
	username     string
	passwordHash []byte
	jwtSecret    []byte
}

func NewAuthUsecase(cfg config.HTTPConfig) (*AuthUsecase, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash operator password: %w", err)
	}
	return &AuthUsecase{
		username:     cfg.Username,
		passwordHash: hash,
		jwtSecret:    []byte(cfg.JWTSecret),
	}, nil
}

// Login verifies the operator credentials and issues a signed token.
func (uc *AuthUsecase) Login(username, password string) (string, error) {
	if username != uc.username {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(uc.passwordHash, []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
