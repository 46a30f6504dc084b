// Package api serves read-only ticket and list status over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/obrc/blacklist/src/actions/core"
	"github.com/obrc/blacklist/src/api/webserver"
	"github.com/obrc/blacklist/src/config"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
)

var _ core.Module = (*Module)(nil)

// Module runs the HTTP server.
type Module struct {
	config *config.APIConfig
	stores webserver.Stores
	server *http.Server
	cancel context.CancelFunc
	done   chan struct{}
}

// NewModule wires the API over db.
func NewModule(cfg *config.APIConfig, db *gorm.DB) (*Module, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("api: jwt secret not configured")
	}
	return &Module{
		config: cfg,
		stores: webserver.Stores{
			Tickets: voting.NewGormStore(db),
			Lists:   listing.NewStore(db),
		},
	}, nil
}

func (m *Module) Name() string { return "api" }

// Start binds the listener before returning so address errors fail startup.
func (m *Module) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	runCtx, cancel := context.WithCancel(ctx)

	ln, err := net.Listen("tcp", m.config.ListenAddr)
	if err != nil {
		cancel()
		return fmt.Errorf("api: listen on %s: %w", m.config.ListenAddr, err)
	}
	m.cancel = cancel
	m.server = &http.Server{
		Handler:           webserver.New(runCtx, *m.config, m.stores),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("api: serve: %v", err)
		}
	}()
	log.Printf("api: listening on %s", ln.Addr())
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	if m.server == nil {
		return
	}
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.server.Shutdown(shutCtx); err != nil {
		log.Printf("api: shutdown: %v", err)
	}
	m.cancel()
	<-m.done
	m.server = nil
}
