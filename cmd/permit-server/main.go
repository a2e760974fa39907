package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/ledgerFactory"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/server"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/verifier"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "permit-server",
		Usage: "Gasless ERC-20 permit verifier",
		Description: `An HTTP service that verifies EIP-2612 permits off-chain.

Owners sign a typed-data permit granting a spender an allowance. The server
recovers the signer, checks the permit nonce and deadline and records the
authorization, advancing the owner's nonce so the permit cannot be replayed.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvPermitPort},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    fmt.Sprintf("Chain ID of the token deployment: %s", config.GetSupportedChainIDsString()),
				EnvVars:  []string{config.EnvPermitChainID},
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "allow-custom-chain",
				Usage:   "Accept chain IDs missing from the registry",
				EnvVars: []string{config.EnvPermitAllowCustomChain},
			},
			&cli.StringFlag{
				Name:     "token-name",
				Usage:    "EIP-712 domain name, as returned by the token's name()",
				EnvVars:  []string{config.EnvPermitTokenName},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "token-version",
				Usage:   "EIP-712 domain version",
				Value:   "1",
				EnvVars: []string{config.EnvPermitTokenVersion},
			},
			&cli.StringFlag{
				Name:     "verifying-contract",
				Aliases:  []string{"token"},
				Usage:    "Token contract address",
				EnvVars:  []string{config.EnvPermitVerifyingContract},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "ledger",
				Usage:   "Nonce ledger backend: memory, badger or redis",
				Value:   string(config.LedgerType_Badger),
				EnvVars: []string{config.EnvPermitLedgerType},
			},
			&cli.StringFlag{
				Name:    "ledger-path",
				Usage:   "Data directory for the badger ledger",
				Value:   "./data/permit-ledger",
				EnvVars: []string{config.EnvPermitLedgerPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for the redis ledger",
				EnvVars: []string{config.EnvPermitRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvPermitRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvPermitRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every redis key, for sharing one redis between tokens",
				EnvVars: []string{config.EnvPermitRedisKeyPrefix},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Verify requests per second (0 disables limiting)",
				Value:   50,
				EnvVars: []string{config.EnvPermitRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Usage:   "Verify request burst size",
				Value:   100,
				EnvVars: []string{config.EnvPermitRateBurst},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvPermitVerbose},
			},
		},
		Action: runPermitServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runPermitServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	permitConfig := parsePermitConfig(c)
	if err := permitConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l.Sugar().Infow("Using chain", "name", permitConfig.ChainName, "chain_id", permitConfig.Domain.ChainID)

	domain, err := permitConfig.Domain.ToDomain()
	if err != nil {
		return err
	}

	nonceLedger, err := ledgerFactory.NewLedger(&permitConfig.Ledger, l)
	if err != nil {
		return fmt.Errorf("failed to open nonce ledger: %w", err)
	}
	defer func() {
		if err := nonceLedger.Close(); err != nil {
			l.Sugar().Errorw("Failed to close nonce ledger", "error", err)
		}
	}()

	v, err := verifier.NewVerifier(domain, nonceLedger, l)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}

	srv, err := server.NewServer(v, &server.ServerConfig{
		Port:      permitConfig.Port,
		RateLimit: permitConfig.RateLimit,
		RateBurst: permitConfig.RateBurst,
	}, l)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Permit server running",
		"port", permitConfig.Port,
		"ledger", permitConfig.Ledger.Type,
		"domainSeparator", v.DomainSeparator().Hex(),
	)
	l.Sugar().Infow("Available endpoints",
		"domain", "GET /domain",
		"nonces", "GET /nonces?owner=",
		"digest", "POST /permit/digest",
		"verify", "POST /permit/verify",
		"authorizations", "GET /authorizations?owner=",
		"health", "GET /health")
	l.Sugar().Info("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	l.Sugar().Info("Shutting down permit server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parsePermitConfig(c *cli.Context) *config.PermitServiceConfig {
	return &config.PermitServiceConfig{
		Port: c.Int("port"),
		Domain: config.DomainConfig{
			Name:              c.String("token-name"),
			Version:           c.String("token-version"),
			ChainID:           config.ChainId(c.Uint64("chain-id")),
			VerifyingContract: c.String("verifying-contract"),
			AllowCustomChain:  c.Bool("allow-custom-chain"),
		},
		Ledger: config.LedgerConfig{
			Type:           config.LedgerType(c.String("ledger")),
			Path:           c.String("ledger-path"),
			RedisAddress:   c.String("redis-address"),
			RedisPassword:  c.String("redis-password"),
			RedisDB:        c.Int("redis-db"),
			RedisKeyPrefix: c.String("redis-key-prefix"),
		},
		RateLimit: c.Float64("rate-limit"),
		RateBurst: c.Int("rate-burst"),
		Debug:     c.Bool("verbose"),
	}
}
