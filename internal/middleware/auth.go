package middleware

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/config"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrNoUser = errors.New("no authenticated user")

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtConfig(cfg, nil))
}

// AdminJWTProtected is JWTProtected except that requests carrying the admin token
// skip token validation, leaving the decision to AdminRequired.
func AdminJWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtConfig(cfg, func(c *fiber.Ctx) bool {
		return hasAdminToken(c, cfg)
	}))
}

func hasAdminToken(c *fiber.Ctx, cfg *config.Config) bool {
	return cfg.AdminToken != "" && c.Get("X-Admin-Token") == cfg.AdminToken
}

func jwtConfig(cfg *config.Config, filter func(*fiber.Ctx) bool) jwtware.Config {
	return jwtware.Config{
		Filter:     filter,
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	}
}

// CurrentUserID returns the user id from the token's sub claim.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil, ErrNoUser
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrNoUser
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrNoUser
	}
	return id, nil
}

// ReviewerID is the acting admin, or nil when access came through the admin token.
func ReviewerID(c *fiber.Ctx) *uuid.UUID {
	id, err := CurrentUserID(c)
	if err != nil {
		return nil
	}
	return &id
}
