package config

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the permit service and CLI
const (
	EnvPermitPort              = "PERMIT_PORT"
	EnvPermitChainID           = "PERMIT_CHAIN_ID"
	EnvPermitAllowCustomChain  = "PERMIT_ALLOW_CUSTOM_CHAIN"
	EnvPermitTokenName         = "PERMIT_TOKEN_NAME"
	EnvPermitTokenVersion      = "PERMIT_TOKEN_VERSION"
	EnvPermitVerifyingContract = "PERMIT_VERIFYING_CONTRACT"
	EnvPermitVerbose           = "PERMIT_VERBOSE"

	EnvPermitLedgerType     = "PERMIT_LEDGER_TYPE"
	EnvPermitLedgerPath     = "PERMIT_LEDGER_PATH"
	EnvPermitRedisAddress   = "PERMIT_REDIS_ADDRESS"
	EnvPermitRedisPassword  = "PERMIT_REDIS_PASSWORD"
	EnvPermitRedisDB        = "PERMIT_REDIS_DB"
	EnvPermitRedisKeyPrefix = "PERMIT_REDIS_KEY_PREFIX"

	EnvPermitRateLimit = "PERMIT_RATE_LIMIT"
	EnvPermitRateBurst = "PERMIT_RATE_BURST"

	EnvPermitServerURL = "PERMIT_SERVER_URL"

	EnvPermitPrivateKey          = "PERMIT_PRIVATE_KEY"
	EnvPermitKeystorePath        = "PERMIT_KEYSTORE_PATH"
	EnvPermitKeystorePassword    = "PERMIT_KEYSTORE_PASSWORD"
	EnvPermitKMSKeyID            = "PERMIT_KMS_KEY_ID"
	EnvPermitAWSRegion           = "PERMIT_AWS_REGION"
	EnvPermitRemoteSignerURL     = "PERMIT_REMOTE_SIGNER_URL"
	EnvPermitRemoteSignerAccount = "PERMIT_REMOTE_SIGNER_ACCOUNT"
)

type ChainId uint64

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
	ChainId_Ganache         ChainId = 1337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
	ChainName_Ganache         ChainName = "ganache"
	ChainName_Custom          ChainName = "custom"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
	ChainId_Ganache:         ChainName_Ganache,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
	ChainName_Ganache:         ChainId_Ganache,
}

// GetSupportedChainIDs returns the registered chain IDs in ascending order
func GetSupportedChainIDs() []ChainId {
	ids := make([]ChainId, 0, len(ChainIdToName))
	for id := range ChainIdToName {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	parts := make([]string, 0, len(ChainIdToName))
	for _, id := range GetSupportedChainIDs() {
		parts = append(parts, fmt.Sprintf("%d (%s)", id, ChainIdToName[id]))
	}
	return strings.Join(parts, ", ")
}

// DomainConfig is the deploy-time identity of the token contract
type DomainConfig struct {
	Name              string  `json:"name"`
	Version           string  `json:"version"`
	ChainID           ChainId `json:"chain_id"`
	VerifyingContract string  `json:"verifying_contract"`

	// AllowCustomChain accepts chain IDs missing from the registry
	AllowCustomChain bool `json:"allow_custom_chain"`
}

func (d *DomainConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	if !utf8.ValidString(d.Name) {
		allErrors = append(allErrors, field.Invalid(path.Child("name"), d.Name, "must be valid UTF-8"))
	}
	if !utf8.ValidString(d.Version) {
		allErrors = append(allErrors, field.Invalid(path.Child("version"), d.Version, "must be valid UTF-8"))
	}
	if d.ChainID == 0 {
		allErrors = append(allErrors, field.Required(path.Child("chain_id"), "chain ID is required"))
	} else if _, ok := ChainIdToName[d.ChainID]; !ok && !d.AllowCustomChain {
		allErrors = append(allErrors, field.NotSupported(path.Child("chain_id"), d.ChainID, supportedChainStrings()))
	}
	if d.VerifyingContract == "" {
		allErrors = append(allErrors, field.Required(path.Child("verifying_contract"), "verifying contract address is required"))
	} else if !common.IsHexAddress(d.VerifyingContract) {
		allErrors = append(allErrors, field.Invalid(path.Child("verifying_contract"), d.VerifyingContract, "must be a hex address"))
	}
	return allErrors
}

func supportedChainStrings() []string {
	out := make([]string, 0, len(ChainIdToName))
	for _, id := range GetSupportedChainIDs() {
		out = append(out, fmt.Sprintf("%d", id))
	}
	return out
}

// Validate checks the domain on its own
func (d *DomainConfig) Validate() error {
	if errs := d.validate(field.NewPath("domain")); len(errs) > 0 {
		return errs.ToAggregate()
	}
	return nil
}

// ChainName returns the registry name of the chain, or "custom"
func (d *DomainConfig) ChainName() ChainName {
	if name, ok := ChainIdToName[d.ChainID]; ok {
		return name
	}
	return ChainName_Custom
}

// ToDomain converts the config into the hashing domain
func (d *DomainConfig) ToDomain() (*types.Domain, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidDomain, err)
	}
	return &types.Domain{
		Name:              d.Name,
		Version:           d.Version,
		ChainID:           new(big.Int).SetUint64(uint64(d.ChainID)),
		VerifyingContract: common.HexToAddress(d.VerifyingContract),
	}, nil
}

type LedgerType string

const (
	LedgerType_Memory LedgerType = "memory"
	LedgerType_Badger LedgerType = "badger"
	LedgerType_Redis  LedgerType = "redis"
)

// LedgerConfig selects and configures the nonce ledger backend
type LedgerConfig struct {
	Type LedgerType `json:"type"`

	// Badger
	Path string `json:"path,omitempty"`

	// Redis
	RedisAddress   string `json:"redis_address,omitempty"`
	RedisPassword  string `json:"-"`
	RedisDB        int    `json:"redis_db,omitempty"`
	RedisKeyPrefix string `json:"redis_key_prefix,omitempty"`
}

func (l *LedgerConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch l.Type {
	case LedgerType_Memory:
	case LedgerType_Badger:
		if l.Path == "" {
			allErrors = append(allErrors, field.Required(path.Child("path"), "badger ledger requires a data path"))
		}
	case LedgerType_Redis:
		if l.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redis_address"), "redis ledger requires an address"))
		}
		if l.RedisDB < 0 || l.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redis_db"), l.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), l.Type,
			[]string{string(LedgerType_Memory), string(LedgerType_Badger), string(LedgerType_Redis)}))
	}
	return allErrors
}

func (l *LedgerConfig) Validate() error {
	if errs := l.validate(field.NewPath("ledger")); len(errs) > 0 {
		return errs.ToAggregate()
	}
	return nil
}

// PermitServiceConfig is the complete configuration of the verifier service
type PermitServiceConfig struct {
	Port   int          `json:"port"`
	Domain DomainConfig `json:"domain"`
	Ledger LedgerConfig `json:"ledger"`

	// RateLimit is the sustained verify requests per second; 0 disables
	// limiting
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	Debug bool `json:"debug"`

	// ChainName is populated by Validate
	ChainName ChainName `json:"chain_name"`
}

// Validate validates the whole service configuration, reporting every
// problem at once
func (c *PermitServiceConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}
	allErrors = append(allErrors, c.Domain.validate(field.NewPath("domain"))...)
	allErrors = append(allErrors, c.Ledger.validate(field.NewPath("ledger"))...)

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rate_limit"), c.RateLimit, "must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rate_burst"), c.RateBurst, "must be at least 1 when rate limiting"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}

	c.ChainName = c.Domain.ChainName()
	return nil
}

type SignerType string

const (
	SignerType_PrivateKey SignerType = "private-key"
	SignerType_Keystore   SignerType = "keystore"
	SignerType_AWSKMS     SignerType = "aws-kms"
	SignerType_Remote     SignerType = "remote"
)

// SignerConfig selects where the owner key lives. Exactly one source must be
// configured.
type SignerConfig struct {
	PrivateKey       string              `json:"-"`
	KeystorePath     string              `json:"keystore_path,omitempty"`
	KeystorePassword string              `json:"-"`
	KMSKeyId         string              `json:"kms_key_id,omitempty"`
	AWSRegion        string              `json:"aws_region,omitempty"`
	RemoteSigner     *RemoteSignerConfig `json:"remote_signer,omitempty"`
}

// Type reports the configured signer source
func (s *SignerConfig) Type() (SignerType, error) {
	var found []SignerType
	if s.PrivateKey != "" {
		found = append(found, SignerType_PrivateKey)
	}
	if s.KeystorePath != "" {
		found = append(found, SignerType_Keystore)
	}
	if s.KMSKeyId != "" {
		found = append(found, SignerType_AWSKMS)
	}
	if s.RemoteSigner != nil && s.RemoteSigner.Url != "" {
		found = append(found, SignerType_Remote)
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no signer configured: set a private key, keystore, KMS key ID or remote signer URL")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("multiple signers configured: %v", found)
	}
}

func (s *SignerConfig) Validate() error {
	signerType, err := s.Type()
	if err != nil {
		return err
	}

	var allErrors field.ErrorList
	switch signerType {
	case SignerType_PrivateKey:
		key := strings.TrimPrefix(s.PrivateKey, "0x")
		if len(key) != 64 {
			// never echo the key itself
			allErrors = append(allErrors, field.Invalid(field.NewPath("private_key"), "<redacted>",
				fmt.Sprintf("must be 32 bytes (64 hex chars), got %d chars", len(key))))
		}
	case SignerType_Remote:
		if err := s.RemoteSigner.Validate(); err != nil {
			return err
		}
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type RemoteSignerConfig struct {
	Url         string `json:"url" yaml:"url"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
}

func (rsc *RemoteSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if rsc.Url == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("url"), "url is required"))
	}
	if rsc.FromAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("fromAddress"), "fromAddress is required"))
	} else if !common.IsHexAddress(rsc.FromAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fromAddress"), rsc.FromAddress, "must be a hex address"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
