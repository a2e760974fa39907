package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/verifier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes a Verifier over HTTP for relayers and wallets.

Client Request Flow:
  GET /domain:
    - Returns the bound domain and its separator
    - Wallets compare the separator against the token's DOMAIN_SEPARATOR()

  GET /nonces?owner=0x..:
    - Returns the nonce the owner must sign over next

  POST /permit/digest:
    - Request: { message }
    - Response: { structHash, digest, typedData }
    - typedData is the eth_signTypedData_v4 payload for the same message

  POST /permit/verify:
    - Request: { message, signature }
    - Runs signature, owner, nonce, deadline checks against the server clock
    - On success the owner's nonce advances and the authorization is recorded
    - Rejections carry the failed check:
        400 signature, 401 owner, 409 nonce, 410 deadline, 422 message
    - Rate limited; 429 when the limiter is exhausted

  GET /authorizations?owner=0x..:
    - Authorizations recorded for the owner in nonce order

  GET /health:
    - 200 when the ledger is usable, 503 otherwise
*/

// Clock supplies the reference time for deadline checks
type Clock func() time.Time

type ServerConfig struct {
	Port int

	// RateLimit is verify requests per second. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// Clock defaults to time.Now
	Clock Clock
}

// Server handles HTTP requests for the permit verifier
type Server struct {
	verifier   *verifier.Verifier
	httpServer *http.Server
	limiter    *rate.Limiter
	clock      Clock
	logger     *zap.Logger
}

// NewServer creates a new server instance
func NewServer(v *verifier.Verifier, cfg *ServerConfig, logger *zap.Logger) (*Server, error) {
	if v == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		verifier: v,
		clock:    cfg.Clock,
		logger:   logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/domain", s.handleGetDomain)
	mux.HandleFunc("/nonces", s.handleGetNonce)
	mux.HandleFunc("/authorizations", s.handleListAuthorizations)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/permit/digest", s.handleDigest)
	mux.HandleFunc("/permit/verify", s.handleVerify)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server",
			"port", s.httpServer.Addr,
			"domainSeparator", s.verifier.DomainSeparator().Hex(),
		)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server immediately
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// Shutdown drains in-flight requests before stopping
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

// referenceTime converts the clock reading to unix seconds. Readings before
// the epoch clamp to 0.
func (s *Server) referenceTime() uint64 {
	now := s.clock().Unix()
	if now < 0 {
		return 0
	}
	return uint64(now)
}
