package awsKmsSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	permitTypes "github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSAPI is the subset of the KMS client used for signing
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
}

// AWSKMSSigner signs permit digests with an ECC_SECG_P256K1 key that never
// leaves KMS
type AWSKMSSigner struct {
	logger    *zap.Logger
	kmsClient KMSAPI
	keyId     string
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
}

func NewAWSKMSSigner(ctx context.Context, awsCfg aws.Config, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	return NewAWSKMSSignerWithClient(ctx, kms.NewFromConfig(awsCfg), keyId, logger)
}

// NewAWSKMSSignerWithClient resolves the key's public key once so every
// signature can be checked against it.
func NewAWSKMSSignerWithClient(ctx context.Context, client KMSAPI, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	pubKey, err := getPublicKey(ctx, client, keyId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}

	address := crypto.PubkeyToAddress(*pubKey)
	logger.Sugar().Infow("Loaded AWS KMS signer",
		"keyId", keyId,
		"address", address.Hex(),
	)

	return &AWSKMSSigner{
		logger:    logger,
		kmsClient: client,
		keyId:     keyId,
		publicKey: pubKey,
		address:   address,
	}, nil
}

func (a *AWSKMSSigner) Address() common.Address {
	return a.address
}

func (a *AWSKMSSigner) KeyId() string {
	return a.keyId
}

// PublicKey returns the uncompressed secp256k1 public key held by KMS
func (a *AWSKMSSigner) PublicKey() *cryptoEcdsa.PublicKey {
	return a.publicKey
}

func (a *AWSKMSSigner) SignDigest(ctx context.Context, digest common.Hash) (*permitTypes.Signature, error) {
	sig, err := a.getSignatureFromKms(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", permitTypes.ErrSigning, errors.Wrapf(err, "kms key %s", a.keyId))
	}
	return sig, nil
}

// CreateSigningKey creates a secp256k1 sign/verify key and points alias at it.
// The returned signer is ready to use.
func CreateSigningKey(ctx context.Context, client KMSAPI, keyName string, aliasName string, logger *zap.Logger) (*AWSKMSSigner, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     types.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("ECDSA key for EIP-2612 permit signing - %s", keyName)),
		Tags: []types.Tag{
			{TagKey: aws.String("Name"), TagValue: aws.String(keyName)},
			{TagKey: aws.String("Purpose"), TagValue: aws.String("permit-signing")},
			{TagKey: aws.String("Curve"), TagValue: aws.String("secp256k1")},
		},
	}

	keyRes, err := client.CreateKey(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ECDSA key %s", keyName)
	}
	keyId := aws.ToString(keyRes.KeyMetadata.KeyId)

	if aliasName != "" {
		_, err = client.CreateAlias(ctx, &kms.CreateAliasInput{
			AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
			TargetKeyId: aws.String(keyId),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create alias %s for key %s", aliasName, keyId)
		}
	}

	return NewAWSKMSSignerWithClient(ctx, client, keyId, logger)
}

func getPublicKey(ctx context.Context, client KMSAPI, keyId string) (*cryptoEcdsa.PublicKey, error) {
	result, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	return parseECDSAPublicKey(result.PublicKey)
}

// parseECDSAPublicKey parses the DER-encoded public key from KMS
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	_, err := asn1.Unmarshal(derBytes, &asn1pubk)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}

	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

func (a *AWSKMSSigner) getSignatureFromKms(ctx context.Context, digest common.Hash) (*permitTypes.Signature, error) {
	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest.Bytes(),
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, err
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	// KMS does not canonicalize s
	s, _ := signer.ToLowS(new(big.Int).SetBytes(sigAsn1.S.Bytes))

	raw := make([]byte, permitTypes.SignatureLength)
	r.FillBytes(raw[0:32])
	s.FillBytes(raw[32:64])

	// KMS does not return the recovery id; find the one recovering our key
	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		raw[64] = recoveryId
		recovered, err := crypto.SigToPub(digest.Bytes(), raw)
		if err != nil {
			a.logger.Debug("Ecrecover failed",
				zap.Uint8("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}

		if recovered.X.Cmp(a.publicKey.X) == 0 && recovered.Y.Cmp(a.publicKey.Y) == 0 {
			return signer.FromRecoverable(raw)
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID - signature recovery failed")
}

var _ signer.IPermitSigner = (*AWSKMSSigner)(nil)
