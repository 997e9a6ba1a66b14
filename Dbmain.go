package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-api/auth"
	"task-api/config"
	"task-api/store"
	"task-api/tasks"
)

type server struct {
	gateway     *auth.Gateway
	issuer      *auth.Issuer
	tasks       *tasks.Service
	ping        func(context.Context) error
	timeout     time.Duration
	corsOrigins []string
}

// newServer wires the auth and task services onto db. bcryptCost 0 uses
// the bcrypt default.
func newServer(cfg config.Config, db *store.Store, cache store.TaskCache, bcryptCost int) (*server, error) {
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Key:      []byte(cfg.JWTKey),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	gateway, err := auth.NewGateway(db, issuer, bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth gateway: %w", err)
	}
	return &server{
		gateway:     gateway,
		issuer:      issuer,
		tasks:       tasks.NewService(db, cache),
		ping:        db.Ping,
		timeout:     cfg.RequestTimeout,
		corsOrigins: cfg.CORSOrigins,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/Auth/register", s.registerHandler)
	mux.HandleFunc("POST /api/Auth/login", s.loginHandler)

	mux.Handle("GET /api/Tasks", s.requireAuth(s.listTasksHandler))
	mux.Handle("POST /api/Tasks", s.requireAuth(s.createTaskHandler))
	mux.Handle("GET /api/Tasks/{id}", s.requireAuth(s.getTaskHandler))
	mux.Handle("PUT /api/Tasks/{id}", s.requireAuth(s.updateTaskHandler))
	mux.Handle("PATCH /api/Tasks/{id}/done", s.requireAuth(s.setDoneHandler))
	mux.Handle("DELETE /api/Tasks/{id}", s.requireAuth(s.deleteTaskHandler))

	mux.HandleFunc("GET /healthz", s.healthHandler)

	return logRequests(cors(s.corsOrigins, mux))
}

func setUpCache(ctx context.Context, addr string) (store.TaskCache, func()) {
	if addr == "" {
		log.Println("WARN: REDIS_ADDR is not set, task cache disabled.")
		return store.NopCache{}, func() {}
	}
	rc, err := store.NewRedisCache(ctx, addr, store.DefaultCacheTTL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to Redis: %v", err)
	}
	return rc, func() { rc.Close() }
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("FATAL: Could not load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBSource)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize database: %v", err)
	}
	defer db.Close()

	if cfg.MigrateOnly {
		log.Println("Tables are up to date.")
		return
	}

	cache, closeCache := setUpCache(ctx, cfg.RedisAddr)
	defer closeCache()

	srv, err := newServer(cfg, db, cache, 0)
	if err != nil {
		log.Fatalf("FATAL: Could not set up server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: Graceful shutdown failed: %v", err)
		}
	}
}
