package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// SignatureLength is the length of an r || s || v encoded signature
const SignatureLength = 65

// Domain identifies one deployed token contract on one chain. It is fixed at
// deploy time and binds every signature to that deployment.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           *big.Int       `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

// PermitMessage is the set of fields an owner signs to grant spender an
// allowance of value. Nonce and Deadline provide replay protection.
type PermitMessage struct {
	Owner    common.Address `json:"owner"`
	Spender  common.Address `json:"spender"`
	Value    *big.Int       `json:"value"`
	Nonce    *big.Int       `json:"nonce"`
	Deadline *big.Int       `json:"deadline"` // Unix timestamp (seconds)
}

// Copy returns a deep copy of the message
func (m *PermitMessage) Copy() *PermitMessage {
	if m == nil {
		return nil
	}
	return &PermitMessage{
		Owner:    m.Owner,
		Spender:  m.Spender,
		Value:    copyBig(m.Value),
		Nonce:    copyBig(m.Nonce),
		Deadline: copyBig(m.Deadline),
	}
}

// Signature is a recoverable secp256k1 signature. V is 27 or 28.
type Signature struct {
	V uint8       `json:"v"`
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
}

// UnmarshalJSON accepts a raw recovery id (0 or 1) for v the same way
// SignatureFromBytes does. Other values are kept so the verifier rejects them.
func (s *Signature) UnmarshalJSON(data []byte) error {
	type plain Signature
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.V == 0 || p.V == 1 {
		p.V += 27
	}
	*s = Signature(p)
	return nil
}

// Bytes returns the 65 byte r || s || v encoding used by wallets and ecrecover
func (s *Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Hex returns the 0x-prefixed r || s || v encoding
func (s *Signature) Hex() string {
	return hexutil.Encode(s.Bytes())
}

// SignatureFromBytes parses an r || s || v signature. A v of 0 or 1 (raw
// recovery id, as returned by some signers) is shifted into {27, 28}; any
// other value outside {27, 28} is rejected.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(b))
	}

	v := b[64]
	if v == 0 || v == 1 {
		v += 27
	}
	if v != 27 && v != 28 {
		return nil, fmt.Errorf("%w: invalid recovery id %d", ErrInvalidSignature, b[64])
	}

	sig := &Signature{V: v}
	copy(sig.R[:], b[0:32])
	copy(sig.S[:], b[32:64])
	return sig, nil
}

// SignatureFromHex parses a 0x-prefixed r || s || v signature
func SignatureFromHex(s string) (*Signature, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return SignatureFromBytes(b)
}

// Authorization records that approve(Owner, Spender, Value) is permitted. It
// is produced once per consumed (owner, nonce) pair.
type Authorization struct {
	ID           uuid.UUID      `json:"id"`
	Owner        common.Address `json:"owner"`
	Spender      common.Address `json:"spender"`
	Value        *big.Int       `json:"value"`
	Nonce        *big.Int       `json:"nonce"`
	Deadline     *big.Int       `json:"deadline"`
	Digest       common.Hash    `json:"digest"`
	AuthorizedAt uint64         `json:"authorizedAt"` // reference time the permit was verified at
}

// Copy returns a deep copy of the authorization
func (a *Authorization) Copy() *Authorization {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Value = copyBig(a.Value)
	cp.Nonce = copyBig(a.Nonce)
	cp.Deadline = copyBig(a.Deadline)
	return &cp
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
