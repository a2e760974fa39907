package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// DomainResponse is returned by GET /domain
type DomainResponse struct {
	Domain          *Domain     `json:"domain"`
	DomainSeparator common.Hash `json:"domainSeparator"`
}

// NonceResponse is returned by GET /nonces
type NonceResponse struct {
	Owner common.Address `json:"owner"`
	Nonce *big.Int       `json:"nonce"`
}

// DigestRequest asks the service to hash a permit under its domain
type DigestRequest struct {
	Message *PermitMessage `json:"message"`
}

// DigestResponse carries everything a wallet needs to sign a permit
type DigestResponse struct {
	StructHash common.Hash         `json:"structHash"`
	Digest     common.Hash         `json:"digest"`
	TypedData  *apitypes.TypedData `json:"typedData"`
}

// PermitSubmission is a signed permit sent for verification
type PermitSubmission struct {
	Message   *PermitMessage `json:"message"`
	Signature *Signature     `json:"signature"`
}

// VerifyResponse is returned by POST /permit/verify on success
type VerifyResponse struct {
	Authorization *Authorization `json:"authorization"`
}

// AuthorizationsResponse is returned by GET /authorizations
type AuthorizationsResponse struct {
	Owner          common.Address   `json:"owner"`
	Authorizations []*Authorization `json:"authorizations"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string            `json:"error"`
	Check VerificationCheck `json:"check,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	ChainID string `json:"chainId"`
	Error   string `json:"error,omitempty"`
}
