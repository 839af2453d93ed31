package farmd

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakefarm/core/events"
	"stakefarm/core/state"
	"stakefarm/crypto"
	"stakefarm/native/farm"
	"stakefarm/native/token"
	"stakefarm/native/whitelist"
	"stakefarm/storage/archive"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine    *farm.Engine
	State     *state.Manager
	Ledgers   []*token.Ledger
	Custody   crypto.Address
	Registry  *whitelist.Registry
	Events    *events.Buffer
	Archive   *archive.Archive
	Auth      *Authenticator
	RateLimit RateLimit
	Logger    *slog.Logger
}

// Server exposes the farm engine and its collaborators over HTTP.
type Server struct {
	engine   *farm.Engine
	state    *state.Manager
	ledgers  map[string]*token.Ledger
	custody  crypto.Address
	registry *whitelist.Registry
	events   *events.Buffer
	archive  *archive.Archive
	auth     *Authenticator
	limiter  *RateLimiter
	logger   *slog.Logger

	router http.Handler
}

// New constructs the configured HTTP router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ledgers := make(map[string]*token.Ledger, len(cfg.Ledgers))
	for _, ledger := range cfg.Ledgers {
		if ledger == nil {
			continue
		}
		ledgers[normalizeSymbol(ledger.Symbol())] = ledger
	}
	srv := &Server{
		engine:   cfg.Engine,
		state:    cfg.State,
		ledgers:  ledgers,
		custody:  cfg.Custody,
		registry: cfg.Registry,
		events:   cfg.Events,
		archive:  cfg.Archive,
		auth:     cfg.Auth,
		limiter:  NewRateLimiter(cfg.RateLimit),
		logger:   logger,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware)

		api.Post("/deposit", s.handleDeposit)
		api.Post("/withdraw", s.handleWithdraw)
		api.Post("/claim", s.handleClaim)
		api.Get("/pending/{account}", s.handlePending)
		api.Get("/pool", s.handlePool)
		api.Get("/participants", s.handleParticipants)
		api.Get("/participants/{account}", s.handleParticipant)
		api.Get("/events", s.handleEvents)
		api.Get("/events/stream", s.handleEventStream)

		api.Post("/tokens/{symbol}/approve", s.handleApprove)
		api.Get("/tokens/{symbol}/balances/{account}", s.handleBalance)

		api.Get("/whitelist", s.handleWhitelist)
		api.Post("/whitelist/verify", s.handleVerify)

		api.Group(func(admin chi.Router) {
			admin.Use(s.auth.Middleware)
			admin.Put("/whitelist/root", s.handleUpdateRoot)
			admin.Post("/tokens/{symbol}/mint", s.handleMint)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ledger(symbol string) (*token.Ledger, error) {
	ledger, ok := s.ledgers[normalizeSymbol(symbol)]
	if !ok {
		return nil, token.ErrUnknownToken
	}
	return ledger, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
