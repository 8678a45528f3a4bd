package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// SnapshotSource da acceso de solo lectura al estado.
type SnapshotSource interface {
	Snapshot() domain.StatusSnapshot
}

// Server expone GET /state y GET /health.
type Server struct {
	addr   string
	source SnapshotSource
	router *gin.Engine
}

// NewServer crea el servidor de status sobre addr (por ejemplo ":3000").
func NewServer(addr string, source SnapshotSource) *Server {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery(), noCache())

	s := &Server{addr: addr, source: source, router: g}
	g.GET("/state", s.state)
	g.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return s
}

// Handler devuelve el router, útil para tests con httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run sirve hasta que ctx se cancele y luego hace shutdown ordenado.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status.Run: listen %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status.Run: shutdown: %w", err)
	}
	slog.Info("status server stopped")
	return nil
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Snapshot())
}

// noCache evita que proxies o navegadores cacheen el estado.
func noCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, max-age=0, must-revalidate")
		c.Next()
	}
}
