/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Build karma engine, auth service and metrics
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warp/karma-engine/api"
	"github.com/warp/karma-engine/auth"
	"github.com/warp/karma-engine/config"
	"github.com/warp/karma-engine/karma"
	"github.com/warp/karma-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	engine := karma.NewEngine(store, cfg.Policy)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	issuer.Revoked = store
	handler := api.NewHandler(engine, auth.NewService(store, issuer), api.NewMetrics())
	router := api.NewRouter(handler, issuer, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":               cfg.Port,
			"db":                 cfg.DBPath,
			"post_like_karma":    cfg.Policy.PostLikeKarma,
			"comment_like_karma": cfg.Policy.CommentLikeKarma,
			"leaderboard_window": cfg.Policy.LeaderboardWindow,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}
