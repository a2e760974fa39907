package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/ledgerFactory"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/keystoreSigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/signerFactory"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "permitctl",
		Usage: "Build, sign and verify EIP-2612 permits",
		Description: `Offline tooling for gasless ERC-20 approvals.

permitctl computes the EIP-712 domain separator, struct hash and digest of a
permit, signs it with a local key, keystore, AWS KMS key or remote wallet,
recovers and verifies signatures and encodes permit(...) calldata for relayers.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvPermitVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "domain-separator",
				Usage:  "Compute the EIP-712 domain separator of a token deployment",
				Flags:  domainFlags(),
				Action: domainSeparatorCommand,
			},
			{
				Name:   "hash-permit",
				Usage:  "Compute the struct hash of a permit message",
				Flags:  permitFlags(true),
				Action: hashPermitCommand,
			},
			{
				Name:   "digest",
				Usage:  "Compute the digest an owner signs",
				Flags:  append(domainFlags(), permitFlags(true)...),
				Action: digestCommand,
			},
			{
				Name:   "typed-data",
				Usage:  "Print the eth_signTypedData_v4 payload of a permit",
				Flags:  append(domainFlags(), permitFlags(true)...),
				Action: typedDataCommand,
			},
			{
				Name:   "sign",
				Usage:  "Sign a permit (owner defaults to the signer's address)",
				Flags:  append(append(domainFlags(), permitFlags(false)...), signerFlags()...),
				Action: signCommand,
			},
			{
				Name:  "recover",
				Usage: "Recover the address that signed a digest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "digest",
						Usage:    "32 byte digest (hex)",
						Required: true,
					},
					signatureFlag(),
				},
				Action: recoverCommand,
			},
			{
				Name:   "verify",
				Usage:  "Verify a signed permit and consume its nonce in a local ledger",
				Flags:  append(append(append(domainFlags(), permitFlags(true)...), signatureFlag()), ledgerFlags()...),
				Action: verifyCommand,
			},
			{
				Name:   "calldata",
				Usage:  "ABI-encode permit(owner, spender, value, deadline, v, r, s)",
				Flags:  append(permitFlags(true), signatureFlag()),
				Action: calldataCommand,
			},
			{
				Name:  "keygen",
				Usage: "Generate an owner key in an encrypted JSON keystore",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out-dir",
						Usage: "Directory to write the keystore file to",
						Value: ".",
					},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "Keystore password",
						EnvVars:  []string{config.EnvPermitKeystorePassword},
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "light",
						Usage: "Use light scrypt parameters (faster, weaker)",
					},
				},
				Action: keygenCommand,
			},
		},
	}
}

func createLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func printJSON(c *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}

func domainSeparatorCommand(c *cli.Context) error {
	domain, err := domainFromFlags(c)
	if err != nil {
		return err
	}
	sep, err := permit.BuildDomainSeparator(domain)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, sep.Hex())
	return err
}

func hashPermitCommand(c *cli.Context) error {
	msg, err := messageFromFlags(c)
	if err != nil {
		return err
	}
	structHash, err := permit.HashPermit(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, structHash.Hex())
	return err
}

func digestCommand(c *cli.Context) error {
	domain, err := domainFromFlags(c)
	if err != nil {
		return err
	}
	msg, err := messageFromFlags(c)
	if err != nil {
		return err
	}
	digest, err := permit.Digest(domain, msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, digest.Hex())
	return err
}

func typedDataCommand(c *cli.Context) error {
	domain, err := domainFromFlags(c)
	if err != nil {
		return err
	}
	msg, err := messageFromFlags(c)
	if err != nil {
		return err
	}
	typedData, err := permit.TypedData(domain, msg)
	if err != nil {
		return err
	}
	return printJSON(c, typedData)
}

type signOutput struct {
	Owner     common.Address `json:"owner"`
	Digest    common.Hash    `json:"digest"`
	Signature string         `json:"signature"`
	V         uint8          `json:"v"`
	R         common.Hash    `json:"r"`
	S         common.Hash    `json:"s"`
}

func signCommand(c *cli.Context) error {
	l, err := createLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	domain, err := domainFromFlags(c)
	if err != nil {
		return err
	}

	s, release, err := signerFactory.NewSigner(c.Context, signerConfigFromFlags(c), l)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}
	defer release()

	owner := s.Address()
	if c.IsSet("owner") {
		flagOwner, err := ownerFromFlags(c)
		if err != nil {
			return err
		}
		if flagOwner != owner {
			return fmt.Errorf("owner %s does not match signer address %s", flagOwner.Hex(), owner.Hex())
		}
	}

	msg, err := permitFromFlags(c, owner)
	if err != nil {
		return err
	}

	sig, digest, err := signer.SignPermit(c.Context, s, domain, msg)
	if err != nil {
		return err
	}

	return printJSON(c, &signOutput{
		Owner:     owner,
		Digest:    digest,
		Signature: sig.Hex(),
		V:         sig.V,
		R:         sig.R,
		S:         sig.S,
	})
}

func recoverCommand(c *cli.Context) error {
	digestBytes, err := hexutil.Decode(c.String("digest"))
	if err != nil || len(digestBytes) != common.HashLength {
		return fmt.Errorf("invalid digest %q: must be 32 bytes of 0x-prefixed hex", c.String("digest"))
	}
	sig, err := types.SignatureFromHex(c.String("signature"))
	if err != nil {
		return err
	}
	addr, err := verifier.Recover(common.BytesToHash(digestBytes), sig)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, addr.Hex())
	return err
}

func verifyCommand(c *cli.Context) error {
	l, err := createLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	domain, err := domainFromFlags(c)
	if err != nil {
		return err
	}
	msg, err := messageFromFlags(c)
	if err != nil {
		return err
	}
	sig, err := types.SignatureFromHex(c.String("signature"))
	if err != nil {
		return err
	}

	ledgerType := config.LedgerType(c.String("ledger"))
	if ledgerType == config.LedgerType_Redis {
		return fmt.Errorf("verify runs against a local ledger: use memory or badger")
	}
	nonceLedger, err := ledgerFactory.NewLedger(&config.LedgerConfig{
		Type: ledgerType,
		Path: c.String("ledger-path"),
	}, l)
	if err != nil {
		return err
	}
	defer func() { _ = nonceLedger.Close() }()

	v, err := verifier.NewVerifier(domain, nonceLedger, l)
	if err != nil {
		return err
	}

	referenceTime := c.Uint64("reference-time")
	if referenceTime == 0 {
		referenceTime = uint64(time.Now().Unix())
	}

	auth, err := v.VerifyPermit(msg, sig, referenceTime)
	if err != nil {
		return err
	}
	return printJSON(c, auth)
}

func calldataCommand(c *cli.Context) error {
	msg, err := messageFromFlags(c)
	if err != nil {
		return err
	}
	sig, err := types.SignatureFromHex(c.String("signature"))
	if err != nil {
		return err
	}
	data, err := permit.EncodePermitCall(msg, sig)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, hexutil.Encode(data))
	return err
}

type keygenOutput struct {
	Address common.Address `json:"address"`
	Path    string         `json:"path"`
}

func keygenCommand(c *cli.Context) error {
	addr, path, err := keystoreSigner.WriteKeystore(c.String("out-dir"), c.String("password"), c.Bool("light"))
	if err != nil {
		return err
	}
	return printJSON(c, &keygenOutput{Address: addr, Path: path})
}

func messageFromFlags(c *cli.Context) (*types.PermitMessage, error) {
	owner, err := ownerFromFlags(c)
	if err != nil {
		return nil, err
	}
	return permitFromFlags(c, owner)
}
