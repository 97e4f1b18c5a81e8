// Package server exposes the feed engine over HTTP for thin clients that
// keep no state of their own.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"pitboard/internal/cache"
	"pitboard/internal/config"
	"pitboard/internal/feed"
	"pitboard/internal/middleware"
	"pitboard/internal/models"
	"pitboard/internal/seed"
	"pitboard/internal/transport"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config     *config.Config
	upstream   transport.Client
	manager    *feed.Manager
	redis      *redis.Client
	app        *fiber.App
	prom       *fiberprometheus.FiberPrometheus
	shutdownFn context.CancelFunc
}

// NewServer creates a server wired from configuration: Redis cache, upstream
// client (HTTP when UPSTREAM_URL is set, otherwise a seeded in-memory
// upstream), and the session manager.
func NewServer(cfg *config.Config) (*Server, error) {
	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	var upstream transport.Client
	if cfg.UpstreamURL != "" {
		upstream = transport.NewHTTPClient(transport.HTTPConfig{
			BaseURL:  cfg.UpstreamURL,
			Attempts: cfg.PollAttempts,
			Delay:    cfg.PollDelay(),
		})
	} else {
		mem := transport.NewMemoryClient()
		ids := seed.Populate(mem, seed.DefaultOptions())
		log.Printf("No UPSTREAM_URL configured; seeded in-memory upstream with posts %v", ids)
		upstream = mem
	}

	return NewServerWithDeps(cfg, upstream, redisClient), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes them.
func NewServerWithDeps(cfg *config.Config, upstream transport.Client, redisClient *redis.Client) *Server {
	cached := cache.Wrap(upstream, cfg.CacheTTL())

	sessionCfg := feed.Config{
		CommentsPerPage:       cfg.CommentsPerPage,
		CollapsedReplyCount:   cfg.CollapsedReplyCount,
		ExpandedReplyPageSize: cfg.ExpandedReplyPageSize,
		ErrorTTL:              cfg.ErrorTTL(),
	}

	return &Server{
		config:   cfg,
		upstream: cached,
		manager:  feed.NewManager(cached, sessionCfg, cfg.SessionIdleTTL()),
		redis:    redisClient,
		prom:     promMiddleware(),
	}
}

var (
	promOnce     sync.Once
	promInstance *fiberprometheus.FiberPrometheus
)

// promMiddleware builds the HTTP metrics middleware once; fiberprometheus
// registers collectors globally, so a second instance would collide.
func promMiddleware() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInstance = fiberprometheus.New("pitboard")
	})
	return promInstance
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.prom != nil {
		app.Use(s.prom.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, X-User-ID, X-User-Name, X-User-Avatar",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
	}
	app.Get("/monitor", monitor.New(monitor.Config{
		Title: "Pitboard Metrics Dashboard",
	}))

	api := app.Group("/api", middleware.Identity())
	feedGroup := api.Group("/feed/:postId")

	feedGroup.Post("/session", s.OpenSession)
	feedGroup.Delete("/session", s.CloseSession)
	feedGroup.Get("/likers", s.GetLikers)
	feedGroup.Delete("/error", s.ClearError)
	feedGroup.Put("/sort", s.SetSort)
	feedGroup.Get("/", s.GetView)

	comments := feedGroup.Group("/comments")
	// Fixed segments before the :commentId parameter.
	comments.Post("/next-page", s.NextCommentPage)
	comments.Post("/prev-page", s.PrevCommentPage)
	comments.Post("/", middleware.RateLimit(
		s.redis, 15, time.Minute, "submit_comment"), s.SubmitComment)
	comments.Put("/:commentId", s.EditComment)
	comments.Delete("/:commentId", s.DeleteComment)
	comments.Post("/:commentId/like", s.ToggleCommentLike)

	replies := comments.Group("/:commentId/replies")
	replies.Post("/toggle", s.ToggleReplies)
	replies.Post("/next-page", s.NextReplyPage)
	replies.Post("/", middleware.RateLimit(
		s.redis, 30, time.Minute, "submit_reply"), s.SubmitReply)
	replies.Put("/:replyId", s.EditReply)
	replies.Delete("/:replyId", s.DeleteReply)
	replies.Post("/:replyId/like", s.ToggleReplyLike)
}

// HealthCheck reports process health plus the state of optional backends.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   "up",
		"sessions": s.manager.Len(),
		"checks": fiber.Map{
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Pitboard Feed API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewUnknownError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	s.manager.StartReaper(ctx, time.Minute)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	s.manager.CloseAll()

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
