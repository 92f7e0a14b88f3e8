package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/gosocial/realtime/internal/admission"
	"github.com/gosocial/realtime/internal/config"
	"github.com/gosocial/realtime/internal/database"
	"github.com/gosocial/realtime/internal/profiles"
	"github.com/gosocial/realtime/internal/server"
)

type App struct {
	log            *log.Logger
	db             database.Repository
	mux            *http.Server
	registry       *server.Registry
	calls          server.CallService
	resolver       profiles.Resolver
	pool           admission.Pool
	signingKey     []byte
	allowedOrigins []string
}

func NewApp(mux *http.ServeMux, logger *log.Logger, registry *server.Registry, callService server.CallService, resolver profiles.Resolver, db database.Repository, pool admission.Pool, cfg *config.Config) *App {
	a := &App{
		log:            logger,
		db:             db,
		registry:       registry,
		calls:          callService,
		resolver:       resolver,
		pool:           pool,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", a.healthz)
	mux.Handle("GET /ws", a.authMiddleware(a.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	a.mux = srv
	return a
}

func (a *App) Start() error {
	a.log.Printf("starting server on %s\n", a.mux.Addr)
	return a.mux.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Println("shutting down HTTP server...")
	if err := a.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
