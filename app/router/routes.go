// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/handlers"
	"github.com/amirphl/viewiq/app/middleware"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/amirphl/viewiq/config"
	_ "github.com/amirphl/viewiq/docs"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth         handlers.AuthHandlerInterface
	Profile      handlers.ProfileHandlerInterface
	Admin        handlers.AdminHandlerInterface
	UserAction   handlers.UserActionHandlerInterface
	BrandSafety  handlers.BrandSafetyHandlerInterface
	Segment      handlers.SegmentHandlerInterface
	AdsAnalyzer  handlers.AdsAnalyzerHandlerInterface
	Payment      handlers.PaymentHandlerInterface
	DomainConfig handlers.DomainConfigHandlerInterface
	Health       *handlers.HealthHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	auth     *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, auth *middleware.AuthMiddleware) *FiberRouter {
	app := fiber.New(fiber.Config{
		AppName:      "ViewIQ API",
		ServerHeader: "ViewIQ",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return &FiberRouter{
		app:      app,
		cfg:      cfg,
		handlers: h,
		auth:     auth,
	}
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	h := r.handlers
	need := middleware.RequireCapability
	authenticated := r.auth.Authenticate()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", h.Health.Health)

	if r.cfg.Deployment.IsDevelopment() {
		api.Get("/swagger.json", r.serveSwaggerJSON)
	}

	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			// webhooks arrive in bursts from few addresses
			return strings.HasPrefix(c.Path(), "/api/v1/payments/webhooks/")
		},
	}))

	// Public
	api.Get("/config", h.DomainConfig.Config)
	api.Get("/payments/plans", h.Payment.ListPlans)
	api.Post("/payments/webhooks/stripe", h.Payment.StripeWebhook)

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.AuthRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}))
	auth.Post("/captcha", h.Auth.Captcha)
	auth.Post("/signup", h.Auth.Signup)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/login/verify", h.Auth.VerifyLogin)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", authenticated, h.Auth.Logout)

	// Profile
	me := api.Group("/users/me", authenticated)
	me.Get("/", h.Profile.Me)
	me.Patch("/", h.Profile.UpdateMe)
	me.Get("/device_tokens", h.Profile.ListDeviceTokens)
	me.Post("/device_tokens", h.Profile.AddDeviceToken)
	me.Delete("/device_tokens/:token", h.Profile.RemoveDeviceToken)

	// Administration
	admin := api.Group("/admin", authenticated)
	admin.Get("/users", need(models.CapabilityAdmin), h.Admin.ListUsers)
	admin.Get("/users/export", need(models.CapabilityAdmin), h.Admin.ExportUsers)
	admin.Get("/users/:id", need(models.CapabilityAdmin), h.Admin.GetUser)
	admin.Patch("/users/:id", need(models.CapabilityAdmin), h.Admin.UpdateUser)
	admin.Delete("/users/:id", need(models.CapabilityAdmin), h.Admin.DeleteUser)
	admin.Post("/users/:id/impersonate", need(models.CapabilityAdmin), h.Admin.Impersonate)
	admin.Get("/capabilities", need(models.CapabilityAdmin), h.Admin.ListCapabilities)
	admin.Get("/roles", need(models.CapabilityAdmin), h.Admin.ListRoles)
	admin.Post("/roles", need(models.CapabilityAdmin), h.Admin.CreateRole)
	admin.Patch("/roles/:id", need(models.CapabilityAdmin), h.Admin.UpdateRole)
	admin.Delete("/roles/:id", need(models.CapabilityAdmin), h.Admin.DeleteRole)
	admin.Get("/dashboard", need(models.CapabilityDashboard), h.Admin.Dashboard)
	admin.Get("/user_actions", need(models.CapabilityAdmin), h.UserAction.List)
	admin.Post("/user_actions", h.UserAction.Create)
	admin.Get("/domains", need(models.CapabilityDomainManagerRead), h.DomainConfig.List)
	admin.Get("/domains/:id", need(models.CapabilityDomainManagerRead), h.DomainConfig.Get)
	admin.Post("/domains", need(models.CapabilityDomainManagerCreate), h.DomainConfig.Create)
	admin.Patch("/domains/:id", need(models.CapabilityDomainManagerCreate), h.DomainConfig.Update)
	admin.Delete("/domains/:id", need(models.CapabilityDomainManagerDelete), h.DomainConfig.Delete)

	// Bad words; export is registered before :id
	badWords := api.Group("/bad_words", authenticated)
	badWords.Get("/categories", need(models.CapabilityBSTERead), h.BrandSafety.ListCategories)
	badWords.Post("/categories", need(models.CapabilityBSTECreate), h.BrandSafety.CreateCategory)
	badWords.Get("/export", need(models.CapabilityBSTEExport), h.BrandSafety.ExportBadWords)
	badWords.Get("/", need(models.CapabilityBSTERead), h.BrandSafety.ListBadWords)
	badWords.Post("/", need(models.CapabilityBSTECreate), h.BrandSafety.CreateBadWord)
	badWords.Get("/:id", need(models.CapabilityBSTERead), h.BrandSafety.GetBadWord)
	badWords.Patch("/:id", need(models.CapabilityBSTECreate), h.BrandSafety.UpdateBadWord)
	badWords.Delete("/:id", need(models.CapabilityBSTEDelete), h.BrandSafety.DeleteBadWord)

	// Blocklisted channels and videos
	blocklist := api.Group("/blocklist", authenticated)
	for _, kind := range []businessflow.BlocklistKind{businessflow.BlocklistChannels, businessflow.BlocklistVideos} {
		prefix := "/" + string(kind)
		blocklist.Get(prefix+"/export", need(models.CapabilityBlocklistExport), h.BrandSafety.ExportBlocklist(kind))
		blocklist.Get(prefix, need(models.CapabilityBlocklistRead), h.BrandSafety.ListBlocklist(kind))
		blocklist.Post(prefix, need(models.CapabilityBlocklistCreate), h.BrandSafety.CreateBlocklistItem(kind))
		blocklist.Delete(prefix+"/:id", need(models.CapabilityBlocklistDelete), h.BrandSafety.DeleteBlocklistItem(kind))
	}

	// Brand safety scores; the high risk label is gated inside the flow
	brandSafety := api.Group("/brand_safety", authenticated)
	brandSafety.Get("/videos/:id", h.BrandSafety.VideoBrandSafety)
	brandSafety.Get("/channels/:id", h.BrandSafety.ChannelBrandSafety)

	// Custom segments; capabilities and ownership are checked in the flow
	segments := api.Group("/segments", authenticated)
	segments.Post("/", h.Segment.Create)
	segments.Get("/", h.Segment.List)
	segments.Get("/:id", h.Segment.Get)
	segments.Delete("/:id", h.Segment.Delete)
	segments.Get("/:id/export", h.Segment.ExportStatus)

	// Ads analyzer
	ads := api.Group("/ads_analyzer", authenticated)
	ads.Get("/opportunities", need(models.CapabilityAdsAnalyzer), h.AdsAnalyzer.ListOpportunities)
	ads.Post("/opportunity_targeting_report", need(models.CapabilityAdsAnalyzer), h.AdsAnalyzer.RequestReport)
	ads.Get("/opportunity_targeting_report/recipients", need(models.CapabilityAdsAnalyzerRecipients), h.AdsAnalyzer.ListRecipients)

	// Billing
	payments := api.Group("/payments", authenticated)
	payments.Get("/subscription", h.Payment.CurrentSubscription)
	payments.Post("/subscriptions", h.Payment.CreateSubscription)

	r.app.Use(r.notFoundHandler)

	slog.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			slog.ErrorContext(c.Context(), "panic recovered",
				"request_id", requestid.FromContext(c),
				"error", e,
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, fiber.HeaderContentDisposition},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	slog.Info("Starting server", "address", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// serveSwaggerJSON serves the registered OpenAPI document
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(doc)
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
		errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
	}

	if code >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.Context(), "unhandled error", "status", code, "error", err, "path", c.Path())
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
