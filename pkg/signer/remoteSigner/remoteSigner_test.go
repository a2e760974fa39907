package remoteSigner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newWalletServer emulates a wallet holding key. It hashes the typed data it
// receives itself, so a payload mismatch surfaces as a recovery failure.
func newWalletServer(t *testing.T, key *testutil.TestKey, checkAccount bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := rpcResponse{Version: "2.0", ID: req.ID}
		switch {
		case req.Method != signTypedDataMethod:
			resp.Error = &rpcError{Code: -32601, Message: "method not found"}
		case len(req.Params) != 2:
			resp.Error = &rpcError{Code: -32602, Message: "invalid params"}
		default:
			var account common.Address
			var typedData apitypes.TypedData
			require.NoError(t, json.Unmarshal(req.Params[0], &account))
			require.NoError(t, json.Unmarshal(req.Params[1], &typedData))

			if checkAccount && account != key.Address {
				resp.Error = &rpcError{Code: -32000, Message: "unknown account"}
				break
			}
			hash, _, err := apitypes.TypedDataAndHash(typedData)
			require.NoError(t, err)
			sig, err := crypto.Sign(hash, key.PrivateKey)
			require.NoError(t, err)
			sig[64] += 27
			resp.Result = hexutil.Encode(sig)
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func Test_RemoteSigner(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	owner := testutil.OwnerKey(t)
	spender := testutil.SpenderKey(t)
	domain := testutil.CreateTestDomain()
	msg := testutil.CreateTestPermit(owner.Address, spender.Address, 0)

	srv := newWalletServer(t, owner, true)
	defer srv.Close()

	t.Run("signs typed data", func(t *testing.T) {
		rs, err := NewRemoteSigner(ctx, srv.URL, owner.Address, logger)
		require.NoError(t, err)
		defer rs.Close()

		sig, digest, err := signer.SignPermit(ctx, rs, domain, msg)
		require.NoError(t, err)

		expectedDigest, err := permit.Digest(domain, msg)
		require.NoError(t, err)
		assert.Equal(t, expectedDigest, digest)

		expectedSig, err := signer.Sign(digest, owner.Bytes)
		require.NoError(t, err)
		assert.Equal(t, expectedSig, sig)
	})

	t.Run("wallet error", func(t *testing.T) {
		rs, err := NewRemoteSigner(ctx, srv.URL, spender.Address, logger)
		require.NoError(t, err)
		defer rs.Close()

		_, _, err = signer.SignPermit(ctx, rs, domain, msg)
		require.ErrorIs(t, err, types.ErrSigning)
	})

	t.Run("domain without typed data form", func(t *testing.T) {
		rs, err := NewRemoteSigner(ctx, srv.URL, owner.Address, logger)
		require.NoError(t, err)
		defer rs.Close()

		unnamed := testutil.CreateTestDomain()
		unnamed.Name = ""
		_, _, err = signer.SignPermit(ctx, rs, unnamed, msg)
		require.ErrorIs(t, err, types.ErrInvalidDomain)
	})

	t.Run("raw digests rejected", func(t *testing.T) {
		rs, err := NewRemoteSigner(ctx, srv.URL, owner.Address, logger)
		require.NoError(t, err)
		defer rs.Close()

		_, err = rs.SignDigest(ctx, common.Hash{})
		require.ErrorIs(t, err, types.ErrSigning)
	})
}

func Test_RemoteSigner_WrongKey(t *testing.T) {
	owner := testutil.OwnerKey(t)
	other := testutil.SpenderKey(t)

	// Wallet signs with a different key than the account it claims to be
	srv := newWalletServer(t, other, false)
	defer srv.Close()

	rs, err := NewRemoteSigner(context.Background(), srv.URL, owner.Address, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer rs.Close()

	msg := testutil.CreateTestPermit(owner.Address, other.Address, 0)
	_, _, err = rs.SignPermit(context.Background(), testutil.CreateTestDomain(), msg)
	require.ErrorIs(t, err, types.ErrSigning)
	assert.Contains(t, err.Error(), "expected "+owner.Address.Hex())
}
