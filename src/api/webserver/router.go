package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/obrc/blacklist/src/config"
	"github.com/obrc/blacklist/src/export"
)

// Stores are the read models served over HTTP.
type Stores struct {
	Tickets TicketReader
	Lists   export.ListReader
}

// New builds the router. The limiter's cleanup stops with ctx.
func New(ctx context.Context, cfg config.APIConfig, stores Stores) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	attachRoutes(ctx, r, cfg, stores)
	return r
}

func attachRoutes(ctx context.Context, r *gin.Engine, cfg config.APIConfig, stores Stores) {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	ticketH := NewTickets(stores.Tickets)
	listH := NewLists(stores.Lists)

	v1 := r.Group("/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		secured := v1.Group("")
		secured.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
		if cfg.RateLimit > 0 {
			secured.Use(RateLimitMiddleware(NewRateLimiter(ctx, cfg.RateLimit, time.Minute)))
		}
		secured.GET("/tickets", ticketH.List)
		secured.GET("/tickets/:id", ticketH.Get)
		secured.GET("/lists/:list", listH.Get)
		secured.GET("/lists/:list/export", listH.Export)
	}
}
