package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"basketvault/core/types"
	"basketvault/native/bank"
	"basketvault/native/basket"
	"basketvault/native/common"
	"basketvault/observability"
	"basketvault/services/basketd/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress   string
	RateLimit       RateLimit
	ShutdownTimeout time.Duration
}

// Vault is the subset of the vault used by the HTTP surface.
type Vault interface {
	Deposit(ctx context.Context, req *basket.DepositRequest) (*basket.DepositResult, error)
	Redeem(ctx context.Context, req *basket.RedeemRequest) (*basket.RedeemResult, error)
	RegisterAsset(ctx context.Context, id types.Address, decimals uint8, mintAuthority types.Address) (*bank.Asset, error)
	OpenAccount(ctx context.Context, asset, owner types.Address) (types.Address, error)
	MintAsset(ctx context.Context, asset, to types.Address, amount uint64, by types.Address) error

	Basket(token types.Address) (*basket.Config, error)
	Baskets() ([]basket.Summary, error)
	Holdings(token types.Address) ([]basket.Holding, error)
	QuoteDeposit(token types.Address, units uint64) ([]basket.Leg, error)
	QuoteRedeem(token types.Address, amount uint64) ([]basket.Leg, error)
	Asset(id types.Address) (*bank.Asset, bool, error)
	Account(ref types.Address) (*bank.HoldingAccount, bool, error)
	DepositAccounts(token, caller types.Address, assets []types.Address) ([]types.Address, error)
	RedeemAccounts(token, caller types.Address) ([]types.Address, error)
}

// Store persists receipts and idempotent responses.
type Store interface {
	RecordReceipt(ctx context.Context, r *storage.Receipt) error
	ListReceipts(ctx context.Context, filter storage.ReceiptFilter) ([]storage.Receipt, error)
	LookupIdempotency(ctx context.Context, key, caller string) (*storage.IdempotencyKey, error)
	ReserveIdempotency(ctx context.Context, record *storage.IdempotencyKey) (bool, error)
	CompleteIdempotency(ctx context.Context, key, caller string, status int, response string) error
	ReleaseIdempotency(ctx context.Context, key, caller string) error
}

// Server hosts the basketd HTTP API.
type Server struct {
	cfg     Config
	vault   Vault
	store   Store
	pauses  *common.PauseSet
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	handler http.Handler
}

// New constructs the server and its routes.
func New(cfg Config, vault Vault, store Store, pauses *common.PauseSet, auth *Authenticator, logger *slog.Logger) (*Server, error) {
	if vault == nil {
		return nil, fmt.Errorf("vault required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pauses == nil {
		pauses = common.NewPauseSet()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:     cfg,
		vault:   vault,
		store:   store,
		pauses:  pauses,
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  logger,
	}
	s.handler = otelhttp.NewHandler(s.routes(), "basketd")
	return s, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(observeRequests)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(s.auth.Middleware())
		r.Get("/v1/baskets", s.handleListBaskets)
		r.Get("/v1/baskets/{token}", s.handleGetBasket)
		r.Get("/v1/baskets/{token}/holdings", s.handleHoldings)
		r.Get("/v1/baskets/{token}/quote", s.handleQuote)
		r.Get("/v1/accounts/{ref}", s.handleGetAccount)
		r.Get("/v1/receipts", s.handleListReceipts)

		r.Group(func(r chi.Router) {
			r.Use(s.withIdempotency)
			r.Post("/v1/baskets/{token}/deposit", s.handleDeposit)
			r.Post("/v1/baskets/{token}/redeem", s.handleRedeem)
			r.Post("/v1/accounts", s.handleOpenAccount)
			r.Post("/v1/assets/{asset}/mint", s.handleMint)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(s.auth.Middleware(ScopeAdmin))
		r.Get("/pause", s.handleGetPauses)
		r.Post("/pause", s.handleSetPause)
		r.Post("/assets", s.handleRegisterAsset)
	})
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("basketd listening", "address", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTP().Observe(route, status, time.Since(start))
	})
}
