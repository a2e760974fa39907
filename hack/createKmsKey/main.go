package main

import (
	"context"
	"os"

	"github.com/Layr-Labs/eigenx-permit-go/internal/aws"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/awsKmsSigner"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Creates a secp256k1 KMS key for a permit owner. KEY_NAME is required,
// KEY_ALIAS is optional.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	keyName := os.Getenv("KEY_NAME")
	if keyName == "" {
		l.Sugar().Fatal("KEY_NAME environment variable is not set")
	}

	awsCfg, err := aws.LoadAWSConfig(ctx, os.Getenv(config.EnvPermitAWSRegion))
	if err != nil {
		l.Sugar().Fatalw("failed to load AWS config", "error", err)
	}

	id, err := aws.GetCallerIdentity(ctx, awsCfg)
	if err != nil {
		l.Sugar().Fatalw("failed to get caller identity", "error", err)
	}
	l.Sugar().Infow("Creating key", "account", id.Account, "arn", id.Arn, "keyName", keyName)

	s, err := awsKmsSigner.CreateSigningKey(ctx, kms.NewFromConfig(awsCfg), keyName, os.Getenv("KEY_ALIAS"), l)
	if err != nil {
		l.Sugar().Fatalw("failed to create KMS key", "error", err)
	}

	l.Sugar().Infow("Created key", "keyId", s.KeyId(), "address", s.Address().Hex())
}
