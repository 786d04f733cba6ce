// Package server exposes the HTTP API: accounts, checklist, training,
// prediction, insights and the one-click email action.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/packmind/internal/artifact"
	"github.com/sells-group/packmind/internal/auth"
	"github.com/sells-group/packmind/internal/config"
	"github.com/sells-group/packmind/internal/predictor"
	"github.com/sells-group/packmind/internal/store"
	"github.com/sells-group/packmind/internal/trainer"
)

// sessionCookie is the session token cookie name.
const sessionCookie = "packmind_session"

// Server holds the API's collaborators and settings.
type Server struct {
	store     store.Store
	artifacts artifact.Store
	trainer   *trainer.Trainer
	predictor *predictor.Predictor
	sessions  *auth.Sessions
	cfg       config.ServerConfig
	secret    string
	log       *zap.Logger
}

// New creates the API server.
func New(st store.Store, artifacts artifact.Store, tr *trainer.Trainer, pr *predictor.Predictor, cfg config.ServerConfig, authCfg config.AuthConfig) *Server {
	return &Server{
		store:     st,
		artifacts: artifacts,
		trainer:   tr,
		predictor: pr,
		sessions:  auth.NewSessions(time.Duration(authCfg.SessionTTLHours) * time.Hour),
		cfg:       cfg,
		secret:    authCfg.Secret,
		log:       zap.L().With(zap.String("component", "server")),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/email/mark-packed", s.handleEmailMarkPacked)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/logout", s.handleLogout)

			r.Get("/items", s.handleListItems)
			r.Post("/items", s.handleCreateItem)
			r.Patch("/items/{id}", s.handleUpdateItem)

			r.Get("/checklist/today", s.handleChecklistToday)
			r.Post("/checklist", s.handleChecklistUpdate)

			r.Post("/train", s.handleTrain)
			r.Post("/train/global", s.handleTrainGlobal)

			r.Get("/predict/today", s.handlePredictToday)
			r.Post("/predict/simulate", s.handlePredictSimulate)

			r.Get("/insights", s.handleInsights)
			r.Get("/metrics", s.handleMetrics)
		})
	})
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) > 0 {
		return s.cfg.AllowedOrigins
	}
	return []string{"*"}
}

// Start serves HTTP until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
