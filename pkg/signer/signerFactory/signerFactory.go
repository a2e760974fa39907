// Package signerFactory builds the configured IPermitSigner backend
package signerFactory

import (
	"context"
	"fmt"

	awsInternal "github.com/Layr-Labs/eigenx-permit-go/internal/aws"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/awsKmsSigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/inMemorySigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/keystoreSigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/remoteSigner"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NewSigner returns the signer described by cfg and a release func that must
// be called once the signer is no longer needed.
func NewSigner(ctx context.Context, cfg *config.SignerConfig, logger *zap.Logger) (signer.IPermitSigner, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("signer config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, noop, fmt.Errorf("invalid signer config: %w", err)
	}
	signerType, _ := cfg.Type()

	switch signerType {
	case config.SignerType_PrivateKey:
		s, err := inMemorySigner.NewInMemorySignerFromHex(cfg.PrivateKey, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.SignerType_Keystore:
		s, err := keystoreSigner.NewKeystoreSigner(cfg.KeystorePath, cfg.KeystorePassword, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.SignerType_AWSKMS:
		awsCfg, err := awsInternal.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if id, err := awsInternal.GetCallerIdentity(ctx, awsCfg); err != nil {
			logger.Sugar().Warnw("Failed to resolve AWS caller identity", "error", err)
		} else {
			logger.Sugar().Infow("Using AWS identity", "account", id.Account, "arn", id.Arn)
		}
		s, err := awsKmsSigner.NewAWSKMSSigner(ctx, awsCfg, cfg.KMSKeyId, logger)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.SignerType_Remote:
		s, err := remoteSigner.NewRemoteSigner(ctx, cfg.RemoteSigner.Url, common.HexToAddress(cfg.RemoteSigner.FromAddress), logger)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, fmt.Errorf("unsupported signer type %q", signerType)
}
