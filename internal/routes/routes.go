package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/config"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	registry *prometheus.Registry,
	healthHandler *handlers.HealthHandler,
	uploadHandler *handlers.UploadHandler,
	sandboxHandler *handlers.SandboxHandler,
	flaggedHandler *handlers.FlaggedImageHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Uploads call the vision API per file: 10 req/min per IP
	uploadLimit := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
	api.Post("/uploads/images", uploadLimit, middleware.JWTProtected(cfg), uploadHandler.Upload)

	// Uploader appeal
	api.Post("/flagged-images/:id/appeal", middleware.JWTProtected(cfg), flaggedHandler.SubmitAppeal)

	// Moderation sandbox (admin only, nothing is persisted)
	test := api.Group("/test", middleware.AdminJWTProtected(cfg), middleware.AdminRequired(db, cfg))
	test.Post("/image-moderation", uploadLimit, sandboxHandler.Moderate)
	test.Post("/image-optimization", uploadLimit, sandboxHandler.Optimize)
	test.Get("/optimization-usage", sandboxHandler.OptimizationUsage)

	// Admin review queue. Static paths are registered before /:id.
	admin := api.Group("/admin", middleware.AdminJWTProtected(cfg), middleware.AdminRequired(db, cfg))
	flagged := admin.Group("/flagged-images")
	flagged.Get("/", flaggedHandler.List)
	flagged.Get("/stats", flaggedHandler.Stats)
	flagged.Get("/high-priority", flaggedHandler.HighPriority)
	flagged.Post("/batch-approve", flaggedHandler.BatchApprove)
	flagged.Post("/batch-reject", flaggedHandler.BatchReject)
	flagged.Get("/:id", flaggedHandler.Get)
	flagged.Put("/:id/approve", flaggedHandler.Approve)
	flagged.Put("/:id/reject", flaggedHandler.Reject)
	flagged.Put("/:id/appeal/resolve", flaggedHandler.ResolveAppeal)
	flagged.Delete("/:id", flaggedHandler.Delete)
}
