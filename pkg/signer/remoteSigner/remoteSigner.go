// Package remoteSigner asks an external wallet (clef, Web3Signer, a browser
// wallet bridge, anvil) to sign permits over JSON-RPC eth_signTypedData_v4.
package remoteSigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const signTypedDataMethod = "eth_signTypedData_v4"

// RemoteSigner signs typed data rather than raw digests since wallets refuse
// to sign opaque hashes. Use it through signer.SignPermit.
type RemoteSigner struct {
	logger  *zap.Logger
	client  *rpc.Client
	account common.Address
}

func NewRemoteSigner(ctx context.Context, url string, account common.Address, logger *zap.Logger) (*RemoteSigner, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial remote signer: %w", err)
	}
	return NewRemoteSignerWithClient(client, account, logger), nil
}

func NewRemoteSignerWithClient(client *rpc.Client, account common.Address, logger *zap.Logger) *RemoteSigner {
	return &RemoteSigner{
		logger:  logger,
		client:  client,
		account: account,
	}
}

func (r *RemoteSigner) Address() common.Address {
	return r.account
}

// SignDigest always fails: a remote wallet only signs typed data it can
// display
func (r *RemoteSigner) SignDigest(_ context.Context, _ common.Hash) (*types.Signature, error) {
	return nil, fmt.Errorf("%w: remote signer cannot sign raw digests, use SignPermit", types.ErrSigning)
}

// SignPermit sends the typed data payload to the wallet and checks that the
// returned signature recovers to the configured account over the locally
// computed digest.
func (r *RemoteSigner) SignPermit(ctx context.Context, domain *types.Domain, msg *types.PermitMessage) (*types.Signature, common.Hash, error) {
	digest, err := permit.Digest(domain, msg)
	if err != nil {
		return nil, common.Hash{}, err
	}
	typedData, err := permit.TypedData(domain, msg)
	if err != nil {
		return nil, common.Hash{}, err
	}

	var result hexutil.Bytes
	if err := r.client.CallContext(ctx, &result, signTypedDataMethod, r.account, typedData); err != nil {
		return nil, common.Hash{}, fmt.Errorf("%w: %s failed: %v", types.ErrSigning, signTypedDataMethod, err)
	}

	sig, err := signer.FromRecoverable(result)
	if err != nil {
		return nil, common.Hash{}, err
	}

	raw := sig.Bytes()
	raw[64] -= 27
	pub, err := crypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("%w: remote signature does not recover: %v", types.ErrSigning, err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != r.account {
		return nil, common.Hash{}, fmt.Errorf("%w: remote signer returned signature for %s, expected %s",
			types.ErrSigning, recovered.Hex(), r.account.Hex())
	}

	r.logger.Sugar().Debugw("Remote signer signed permit",
		"account", r.account.Hex(),
		"digest", digest.Hex(),
	)
	return sig, digest, nil
}

func (r *RemoteSigner) Close() {
	r.client.Close()
}

var _ signer.ITypedDataSigner = (*RemoteSigner)(nil)
