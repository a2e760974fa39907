package main

import (
	"context"
	"os"

	"github.com/Layr-Labs/eigenx-permit-go/internal/aws"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/awsKmsSigner"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Prints the permit owner address behind a KMS key
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	keyId := os.Getenv(config.EnvPermitKMSKeyID)
	if keyId == "" {
		l.Sugar().Fatalf("%s environment variable is not set", config.EnvPermitKMSKeyID)
	}

	awsCfg, err := aws.LoadAWSConfig(ctx, os.Getenv(config.EnvPermitAWSRegion))
	if err != nil {
		l.Sugar().Fatalw("failed to load AWS config", "error", err)
	}

	s, err := awsKmsSigner.NewAWSKMSSigner(ctx, awsCfg, keyId, l)
	if err != nil {
		l.Sugar().Fatalw("failed to load KMS key", "error", err)
	}

	pubKey := crypto.FromECDSAPub(s.PublicKey())
	l.Sugar().Infow("KMS Key",
		"keyId", s.KeyId(),
		"publicKeyHex", hexutil.Encode(pubKey),
		"publicKeyHexUnprefixed", hexutil.Encode(pubKey[1:]),
		"address", s.Address().Hex(),
	)
}
