package httphandler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/port"
)

type Services struct {
	Catalog  port.CatalogService
	Cart     port.CartService
	Checkout port.CheckoutService
	Users    port.UserService
	Reviews  port.ReviewService
	Sessions port.SessionService
}

type RouterConfig struct {
	Session SessionCookie

	// MediaPrefix is the URL path product images are served under.
	MediaPrefix string
	Media       http.FileSystem

	CORSOrigins   []string
	MaxUploadSize int64

	// Health reports readiness of the backing stores. Nil means always
	// healthy.
	Health func(ctx context.Context) error
}

func NewRouter(s Services, cfg RouterConfig) *gin.Engine {
	if cfg.MediaPrefix == "" {
		cfg.MediaPrefix = "/images"
	}

	r := gin.New()
	r.Use(gin.Recovery(), Logger(), corsMiddleware(cfg.CORSOrigins))
	if cfg.MaxUploadSize > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadSize
	}

	r.GET("/health", health(cfg.Health))
	// cors answers cross-origin preflights before this handler runs.
	r.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	if cfg.Media != nil {
		r.StaticFS(cfg.MediaPrefix, cfg.Media)
	}

	registerAPI(r.Group("/api/v1", AllowJSON()), s)

	web := r.Group("/", Sessions(cfg.Session))
	requireAdmin := RequireAdmin(s.Sessions, s.Users)

	store := web.Group("/", AllowJSON())
	registerStorefront(store, s, cfg.MediaPrefix)
	registerCart(store, s, cfg.MediaPrefix)
	registerAuth(store, s, cfg.Session)
	registerReviews(store, s, requireAdmin)

	registerAdmin(web.Group("/admin", requireAdmin), s, cfg.MediaPrefix)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func health(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
