// Package api exposes the gofolio HTTP API: public read endpoints, the
// contact and meeting forms, and the authenticated admin surface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gofolio/internal/cache"
	"gofolio/internal/content"
	"gofolio/internal/logger"
	"gofolio/internal/model"
	"gofolio/internal/notify"
	"gofolio/internal/telemetry"
)

const (
	defaultTokenTTL          = 12 * time.Hour
	defaultHeartbeatInterval = 30 * time.Second
	healthCheckTimeout       = 2 * time.Second
	healthStatusHealthy      = "healthy"
	healthStatusDegraded     = "degraded"
)

// Config holds the HTTP-level settings.
type Config struct {
	APIKeys           []string
	JWTSecret         string
	AdminPassword     string
	TokenTTL          time.Duration
	HeartbeatInterval time.Duration

	// FormRatePerMinute limits public form submissions per client IP;
	// zero disables the limit.
	FormRatePerMinute int
	FormBurst         int
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router serves.
type Deps struct {
	Catalog   *content.Catalog
	Notifier  *notify.Notifier
	Store     Pinger
	Telemetry *telemetry.Provider
	Logger    logger.Logger
}

// Router holds the API dependencies
type Router struct {
	cfg       Config
	catalog   *content.Catalog
	notifier  *notify.Notifier
	store     Pinger
	telemetry *telemetry.Provider
	logger    logger.Logger

	published map[string]*cache.Cache[[]model.ContentItem]
	engine    *gin.Engine
}

// NewRouter builds the gin engine and the per-kind public caches.
func NewRouter(cfg Config, deps Deps) *Router {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := &Router{
		cfg:       cfg,
		catalog:   deps.Catalog,
		notifier:  deps.Notifier,
		store:     deps.Store,
		telemetry: deps.Telemetry,
		logger:    log,
		published: make(map[string]*cache.Cache[[]model.ContentItem]),
	}
	for _, k := range r.catalog.Kinds() {
		r.published[k.Slug] = cache.New[[]model.ContentItem](r.notifier, k.Repo.Category(), r.telemetry)
	}

	r.engine = gin.New()
	r.engine.Use(gin.Recovery(), LoggerMiddleware(log))
	r.setupRoutes(r.engine)
	return r
}

// Handler returns the HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Close releases the cache subscriptions.
func (r *Router) Close() {
	for _, c := range r.published {
		c.Close()
	}
}

func (r *Router) setupRoutes(router *gin.Engine) {
	router.GET("/health", r.health)
	router.GET("/metrics", gin.WrapH(r.telemetry.Handler()))

	v1 := router.Group("/api/v1")
	for _, k := range r.catalog.Kinds() {
		v1.GET("/"+k.Slug, r.listPublished(k))
		v1.GET("/"+k.Slug+"/:id", r.getPublished(k))
	}
	forms := rateLimitMiddleware(r.cfg.FormRatePerMinute, r.cfg.FormBurst)
	v1.POST("/messages", forms, r.createMessage)
	v1.POST("/meetings", forms, r.createMeeting)
	v1.POST("/auth/login", r.login)

	admin := v1.Group("/admin", authMiddleware(parseAPIKeys(r.cfg.APIKeys), r.cfg.JWTSecret))
	for _, k := range r.catalog.Kinds() {
		admin.GET("/"+k.Slug, r.listContent(k))
		admin.POST("/"+k.Slug, r.createContent(k))
		admin.GET("/"+k.Slug+"/:id", r.getContent(k))
		admin.PATCH("/"+k.Slug+"/:id", r.updateContent(k))
		admin.DELETE("/"+k.Slug+"/:id", r.deleteContent(k))
	}

	admin.GET("/messages", r.listMessages)
	admin.GET("/messages/:id", r.getMessage)
	admin.PATCH("/messages/:id", r.updateMessage)
	admin.DELETE("/messages/:id", r.deleteMessage)

	admin.GET("/meetings", r.listMeetings)
	admin.GET("/meetings/:id", r.getMeeting)
	admin.PATCH("/meetings/:id", r.updateMeeting)
	admin.DELETE("/meetings/:id", r.deleteMeeting)

	admin.GET("/stats", r.stats)
	admin.GET("/events", r.events)
}

// health pings the document store
// GET /health
func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := r.store.Ping(ctx); err != nil {
		r.logger.Warn("Health check failed", logger.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": healthStatusDegraded})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": healthStatusHealthy})
}

// stats returns dashboard counters
// GET /api/v1/admin/stats
func (r *Router) stats(c *gin.Context) {
	stats, err := r.catalog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "stats", "get")
		return
	}
	c.JSON(http.StatusOK, stats)
}
