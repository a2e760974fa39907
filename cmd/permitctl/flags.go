package main

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/urfave/cli/v2"
)

func domainFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "token-name",
			Usage:    "EIP-712 domain name",
			EnvVars:  []string{config.EnvPermitTokenName},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "token-version",
			Usage:   "EIP-712 domain version",
			Value:   "1",
			EnvVars: []string{config.EnvPermitTokenVersion},
		},
		&cli.Uint64Flag{
			Name:     "chain-id",
			Aliases:  []string{"chain"},
			Usage:    "Chain ID of the token deployment",
			EnvVars:  []string{config.EnvPermitChainID},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "verifying-contract",
			Aliases:  []string{"token"},
			Usage:    "Token contract address",
			EnvVars:  []string{config.EnvPermitVerifyingContract},
			Required: true,
		},
	}
}

func permitFlags(ownerRequired bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "Address granting the allowance",
			Required: ownerRequired,
		},
		&cli.StringFlag{
			Name:     "spender",
			Usage:    "Address receiving the allowance",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "value",
			Usage:    "Allowance in base units (decimal or 0x hex)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "nonce",
			Usage: "Owner's current permit nonce",
			Value: "0",
		},
		&cli.StringFlag{
			Name:     "deadline",
			Usage:    "Unix timestamp after which the permit expires",
			Required: true,
		},
	}
}

func signatureFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "signature",
		Aliases:  []string{"sig"},
		Usage:    "65 byte r || s || v signature (hex)",
		Required: true,
	}
}

func signerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "Owner private key (hex)",
			EnvVars: []string{config.EnvPermitPrivateKey},
		},
		&cli.StringFlag{
			Name:    "keystore",
			Usage:   "Path to an encrypted JSON keystore",
			EnvVars: []string{config.EnvPermitKeystorePath},
		},
		&cli.StringFlag{
			Name:    "keystore-password",
			Usage:   "Keystore password",
			EnvVars: []string{config.EnvPermitKeystorePassword},
		},
		&cli.StringFlag{
			Name:    "kms-key-id",
			Usage:   "AWS KMS key ID or alias holding an ECC_SECG_P256K1 key",
			EnvVars: []string{config.EnvPermitKMSKeyID},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override for the KMS signer",
			EnvVars: []string{config.EnvPermitAWSRegion},
		},
		&cli.StringFlag{
			Name:    "remote-signer-url",
			Usage:   "JSON-RPC endpoint serving eth_signTypedData_v4",
			EnvVars: []string{config.EnvPermitRemoteSignerURL},
		},
		&cli.StringFlag{
			Name:    "remote-signer-account",
			Usage:   "Account the remote signer signs with",
			EnvVars: []string{config.EnvPermitRemoteSignerAccount},
		},
	}
}

func ledgerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "ledger",
			Usage:   "Nonce ledger backend: memory or badger",
			Value:   string(config.LedgerType_Memory),
			EnvVars: []string{config.EnvPermitLedgerType},
		},
		&cli.StringFlag{
			Name:    "ledger-path",
			Usage:   "Data directory for the badger ledger",
			EnvVars: []string{config.EnvPermitLedgerPath},
		},
		&cli.Uint64Flag{
			Name:  "reference-time",
			Usage: "Unix timestamp to check the deadline against (default: now)",
		},
	}
}

func domainFromFlags(c *cli.Context) (*types.Domain, error) {
	dc := &config.DomainConfig{
		Name:              c.String("token-name"),
		Version:           c.String("token-version"),
		ChainID:           config.ChainId(c.Uint64("chain-id")),
		VerifyingContract: c.String("verifying-contract"),
		// offline tooling works against any chain
		AllowCustomChain: true,
	}
	return dc.ToDomain()
}

func permitFromFlags(c *cli.Context, owner common.Address) (*types.PermitMessage, error) {
	spender, err := parseAddress("spender", c.String("spender"))
	if err != nil {
		return nil, err
	}
	msg := &types.PermitMessage{Owner: owner, Spender: spender}

	fields := []struct {
		name string
		into **big.Int
	}{
		{"value", &msg.Value},
		{"nonce", &msg.Nonce},
		{"deadline", &msg.Deadline},
	}
	for _, f := range fields {
		v, ok := math.ParseBig256(c.String(f.name))
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a uint256", f.name, c.String(f.name))
		}
		*f.into = v
	}
	return msg, nil
}

func ownerFromFlags(c *cli.Context) (common.Address, error) {
	return parseAddress("owner", c.String("owner"))
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func signerConfigFromFlags(c *cli.Context) *config.SignerConfig {
	cfg := &config.SignerConfig{
		PrivateKey:       c.String("private-key"),
		KeystorePath:     c.String("keystore"),
		KeystorePassword: c.String("keystore-password"),
		KMSKeyId:         c.String("kms-key-id"),
		AWSRegion:        c.String("aws-region"),
	}
	if url := c.String("remote-signer-url"); url != "" {
		cfg.RemoteSigner = &config.RemoteSignerConfig{
			Url:         url,
			FromAddress: c.String("remote-signer-account"),
		}
	}
	return cfg
}
