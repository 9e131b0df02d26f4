package middleware

import (
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows browser admin panels to call the review API. The admin token and
// request id headers must be allowed explicitly.
func CORS(cfg *config.Config) fiber.Handler {
	origins := cfg.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, X-Admin-Token, X-Request-ID",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: false,
		MaxAge:           600,
	})
}

// SecurityHeaders sets the response hardening headers. Uploaded images are
// served from the same origin, so content sniffing stays disabled.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	}
}
