package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/voxguild/permengine/internal/config"
)

const (
	// LocalsUserID holds the authenticated uuid.UUID.
	LocalsUserID = "userid"

	// HeaderServiceToken carries the lifecycle service token.
	HeaderServiceToken = "X-Service-Token"
)

var (
	// ErrTokenRequired is returned when no bearer token was sent.
	ErrTokenRequired = fiber.NewError(fiber.StatusUnauthorized, "bearer token required")

	// ErrTokenInvalid is returned for a token that fails verification.
	ErrTokenInvalid = fiber.NewError(fiber.StatusUnauthorized, "bearer token invalid")

	// ErrEmptySecret is returned by Sign without secret.
	ErrEmptySecret = errors.New("jwt secret is empty")
)

// New verifies the bearer token and stores the subject as LocalsUserID.
func New(cfg config.Auth) fiber.Handler {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}

	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(time.Duration(cfg.Leeway)*time.Second))
	}

	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	parser := jwt.NewParser(options...)
	secret := []byte(cfg.JWTSecret)

	return func(c fiber.Ctx) error {
		raw := bearer(c)
		if raw == "" {
			return ErrTokenRequired
		}

		var claims jwt.RegisteredClaims

		if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			return ErrTokenInvalid
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil || userID == uuid.Nil {
			return ErrTokenInvalid
		}

		c.Locals(LocalsUserID, userID)

		return c.Next()
	}
}

// ServiceToken accepts requests carrying token in HeaderServiceToken or as bearer.
// An empty token rejects every request.
func ServiceToken(token string) fiber.Handler {
	want := []byte(token)

	return func(c fiber.Ctx) error {
		got := c.Get(HeaderServiceToken)
		if got == "" {
			got = bearer(c)
		}

		if token == "" || got == "" {
			return ErrTokenRequired
		}

		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			return ErrTokenInvalid
		}

		return c.Next()
	}
}

// UserID returns the authenticated caller, uuid.Nil outside New.
func UserID(c fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(LocalsUserID).(uuid.UUID)

	return id
}

// Sign issues a token for userID valid for ttl.
func Sign(cfg config.Auth, userID uuid.UUID, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", ErrEmptySecret
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

func bearer(c fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
