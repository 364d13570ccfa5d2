// Package httpapi exposes the authentication, two-factor and vault
// operations as a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkurganov/passvault/internal/cryptox"
	"github.com/dkurganov/passvault/internal/logging"
	"github.com/dkurganov/passvault/internal/server/services"
	"github.com/gorilla/mux"
)

type Server struct {
	address   string
	auth      *services.AuthService
	twoFactor *services.TwoFactorService
	vault     *services.VaultService
	crypto    *cryptox.Engine
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, as *services.AuthService, ts *services.TwoFactorService,
	vs *services.VaultService, crypto *cryptox.Engine, secretKey string) *Server {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		auth:      as,
		twoFactor: ts,
		vault:     vs,
		crypto:    crypto,
		jwtSecret: []byte(secretKey),
	}
}

// Router builds the public route table. Everything under the authenticated
// subrouter sees the principal only through the bearer token.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	r.HandleFunc("/api/signup", s.handleSignUp).Methods("POST")
	r.HandleFunc("/api/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/api/auth/refresh", s.handleRefresh).Methods("POST")

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/2fa/provision", s.handleProvision).Methods("POST")
	authed.HandleFunc("/2fa/confirm", s.handleConfirm).Methods("POST")
	authed.HandleFunc("/vault", s.handleListItems).Methods("GET")
	authed.HandleFunc("/vault", s.handleCreateItem).Methods("POST")
	authed.HandleFunc("/vault/export", s.handleExport).Methods("POST")
	authed.HandleFunc("/vault/import", s.handleImport).Methods("POST")
	authed.HandleFunc("/vault/{id}", s.handleGetItem).Methods("GET")
	authed.HandleFunc("/vault/{id}", s.handleUpdateItem).Methods("PUT")
	authed.HandleFunc("/vault/{id}", s.handleDeleteItem).Methods("DELETE")

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
