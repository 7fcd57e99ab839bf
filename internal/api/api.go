package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/susu3304/tripledger/internal/config"
	"github.com/susu3304/tripledger/internal/ledger"
	"github.com/susu3304/tripledger/internal/lifecycle"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Records is the read side of the record store.
type Records interface {
	ReadAll(ctx context.Context, form string) (map[string]ledger.Record, error)
	Get(ctx context.Context, form, key string) (ledger.Record, bool, error)
}

type API struct {
	router      *mux.Router
	svc         *lifecycle.Service
	records     Records
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	log         *zap.Logger
}

func New(cfg *config.Config, svc *lifecycle.Service, records Records, log *zap.Logger) *API {
	api := &API{
		router:    mux.NewRouter(),
		svc:       svc,
		records:   records,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		log:       log,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/turns", a.handleTurn).Methods("POST")
	protected.HandleFunc("/session", a.handleGetSession).Methods("GET")
	protected.HandleFunc("/session", a.handleClearSession).Methods("DELETE")
	protected.HandleFunc("/forms", a.handleListForms).Methods("GET")
	protected.HandleFunc("/forms/{form}/records", a.handleListRecords).Methods("GET")
	protected.HandleFunc("/forms/{form}/records/{entity}/{date}", a.handleGetRecord).Methods("GET")
}

// Handler is the router wrapped in CORS.
func (a *API) Handler() http.Handler {
	// When AllowedOrigins is "*", AllowCredentials must be false
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start serves until ctx is cancelled.
func (a *API) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("API server listening", zap.String("addr", "http://"+a.config.WebBind))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
