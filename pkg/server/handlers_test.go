package server

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger/memory"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	server *Server
	ledger *memory.MemoryLedger
	domain *types.Domain
	owner  *testutil.TestKey
}

func newTestServer(t *testing.T, cfg *ServerConfig) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	domain := testutil.CreateTestDomain()
	l := memory.NewMemoryLedger(logger)
	v, err := verifier.NewVerifier(domain, l, logger)
	require.NoError(t, err)

	if cfg == nil {
		cfg = &ServerConfig{}
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Unix(testutil.TestReferenceNow, 0) }
	}
	s, err := NewServer(v, cfg, logger)
	require.NoError(t, err)

	return &testServer{server: s, ledger: l, domain: domain, owner: testutil.OwnerKey(t)}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	ts.server.GetHandler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) signedSubmission(t *testing.T, nonce int64) *types.PermitSubmission {
	t.Helper()
	msg := testutil.CreateTestPermit(ts.owner.Address, testutil.SpenderKey(t).Address, nonce)
	digest, err := permit.Digest(ts.domain, msg)
	require.NoError(t, err)
	sig, err := signer.Sign(digest, ts.owner.Bytes)
	require.NoError(t, err)
	return &types.PermitSubmission{Message: msg, Signature: sig}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func TestNewServer_ValidationErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)
	v, err := verifier.NewVerifier(testutil.CreateTestDomain(), memory.NewMemoryLedger(logger), logger)
	require.NoError(t, err)

	_, err = NewServer(nil, &ServerConfig{}, logger)
	assert.ErrorContains(t, err, "verifier cannot be nil")
	_, err = NewServer(v, nil, logger)
	assert.ErrorContains(t, err, "config cannot be nil")
	_, err = NewServer(v, &ServerConfig{}, nil)
	assert.ErrorContains(t, err, "logger is required")
}

func TestHandleGetDomain(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/domain", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.DomainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ts.domain.Name, resp.Domain.Name)
	assert.Equal(t, 0, ts.domain.ChainID.Cmp(resp.Domain.ChainID))

	want, err := permit.BuildDomainSeparator(ts.domain)
	require.NoError(t, err)
	assert.Equal(t, want, resp.DomainSeparator)

	w = ts.do(t, http.MethodPost, "/domain", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleGetNonce(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("fresh owner starts at zero", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/nonces?owner="+ts.owner.Address.Hex(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp types.NonceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, ts.owner.Address, resp.Owner)
		assert.Equal(t, int64(0), resp.Nonce.Int64())
	})

	t.Run("missing owner", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/nonces", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid owner", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/nonces?owner=0x1234", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDigest(t *testing.T) {
	ts := newTestServer(t, nil)
	msg := testutil.CreateTestPermit(ts.owner.Address, testutil.SpenderKey(t).Address, 0)

	w := ts.do(t, http.MethodPost, "/permit/digest", &types.DigestRequest{Message: msg})
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.DigestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	wantDigest, err := permit.Digest(ts.domain, msg)
	require.NoError(t, err)
	wantStruct, err := permit.HashPermit(msg)
	require.NoError(t, err)
	assert.Equal(t, wantDigest, resp.Digest)
	assert.Equal(t, wantStruct, resp.StructHash)
	require.NotNil(t, resp.TypedData)
	assert.Equal(t, "Permit", resp.TypedData.PrimaryType)

	t.Run("missing message", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/permit/digest", &types.DigestRequest{})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, types.CheckMessage, decodeError(t, w).Check)
	})

	t.Run("negative value", func(t *testing.T) {
		bad := msg.Copy()
		bad.Value = big.NewInt(-1)
		w := ts.do(t, http.MethodPost, "/permit/digest", &types.DigestRequest{Message: bad})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/permit/digest", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleVerify(t *testing.T) {
	t.Run("accepts then rejects replay", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sub := ts.signedSubmission(t, 0)

		w := ts.do(t, http.MethodPost, "/permit/verify", sub)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp types.VerifyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Authorization)
		assert.Equal(t, ts.owner.Address, resp.Authorization.Owner)
		assert.Equal(t, uint64(testutil.TestReferenceNow), resp.Authorization.AuthorizedAt)

		w = ts.do(t, http.MethodPost, "/permit/verify", sub)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, types.CheckNonce, decodeError(t, w).Check)

		n, err := ts.ledger.CurrentNonce(ts.owner.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n.Int64())
	})

	tests := []struct {
		name      string
		mutate    func(t *testing.T, ts *testServer, sub *types.PermitSubmission)
		wantCode  int
		wantCheck types.VerificationCheck
	}{
		{
			name: "invalid signature",
			mutate: func(t *testing.T, ts *testServer, sub *types.PermitSubmission) {
				sub.Signature.V = 30
			},
			wantCode:  http.StatusBadRequest,
			wantCheck: types.CheckSignature,
		},
		{
			name: "signed by someone else",
			mutate: func(t *testing.T, ts *testServer, sub *types.PermitSubmission) {
				digest, err := permit.Digest(ts.domain, sub.Message)
				require.NoError(t, err)
				sig, err := signer.Sign(digest, testutil.SpenderKey(t).Bytes)
				require.NoError(t, err)
				sub.Signature = sig
			},
			wantCode:  http.StatusUnauthorized,
			wantCheck: types.CheckOwner,
		},
		{
			name: "expired",
			mutate: func(t *testing.T, ts *testServer, sub *types.PermitSubmission) {
				sub.Message.Deadline = big.NewInt(testutil.TestReferenceNow - 1)
				digest, err := permit.Digest(ts.domain, sub.Message)
				require.NoError(t, err)
				sig, err := signer.Sign(digest, ts.owner.Bytes)
				require.NoError(t, err)
				sub.Signature = sig
			},
			wantCode:  http.StatusGone,
			wantCheck: types.CheckDeadline,
		},
		{
			name: "malformed value",
			mutate: func(t *testing.T, ts *testServer, sub *types.PermitSubmission) {
				sub.Message.Value = big.NewInt(-5)
			},
			wantCode:  http.StatusUnprocessableEntity,
			wantCheck: types.CheckMessage,
		},
		{
			name: "missing message",
			mutate: func(t *testing.T, ts *testServer, sub *types.PermitSubmission) {
				sub.Message = nil
			},
			wantCode:  http.StatusUnprocessableEntity,
			wantCheck: types.CheckMessage,
		},
		{
			name: "missing signature",
			mutate: func(t *testing.T, ts *testServer, sub *types.PermitSubmission) {
				sub.Signature = nil
			},
			wantCode:  http.StatusBadRequest,
			wantCheck: types.CheckSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			sub := ts.signedSubmission(t, 0)
			tt.mutate(t, ts, sub)

			w := ts.do(t, http.MethodPost, "/permit/verify", sub)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCheck, resp.Check)
			assert.NotEmpty(t, resp.Error)

			n, err := ts.ledger.CurrentNonce(ts.owner.Address)
			require.NoError(t, err)
			assert.Equal(t, int64(0), n.Int64())
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		ts := newTestServer(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/permit/verify", bytes.NewReader([]byte("invalid json")))
		w := httptest.NewRecorder()
		ts.server.GetHandler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("raw recovery id in json", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sub := ts.signedSubmission(t, 0)
		sub.Signature.V -= 27

		w := ts.do(t, http.MethodPost, "/permit/verify", sub)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("uses injected clock", func(t *testing.T) {
		now := time.Unix(testutil.TestReferenceNow, 0)
		ts := newTestServer(t, &ServerConfig{Clock: func() time.Time { return now }})

		sub := ts.signedSubmission(t, 0)
		sub.Message.Deadline = big.NewInt(testutil.TestReferenceNow + 10)
		digest, err := permit.Digest(ts.domain, sub.Message)
		require.NoError(t, err)
		sub.Signature, err = signer.Sign(digest, ts.owner.Bytes)
		require.NoError(t, err)

		now = now.Add(11 * time.Second)
		w := ts.do(t, http.MethodPost, "/permit/verify", sub)
		require.Equal(t, http.StatusGone, w.Code)

		now = time.Unix(testutil.TestReferenceNow+10, 0)
		w = ts.do(t, http.MethodPost, "/permit/verify", sub)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("concurrent replays have one winner", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sub := ts.signedSubmission(t, 0)

		var wg sync.WaitGroup
		codes := make([]int, 16)
		for i := range codes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				codes[i] = ts.do(t, http.MethodPost, "/permit/verify", sub).Code
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, c := range codes {
			if c == http.StatusOK {
				ok++
			} else {
				assert.Equal(t, http.StatusConflict, c)
			}
		}
		assert.Equal(t, 1, ok)
	})
}

func TestHandleVerify_RateLimit(t *testing.T) {
	ts := newTestServer(t, &ServerConfig{RateLimit: 0.001, RateBurst: 1})

	w := ts.do(t, http.MethodPost, "/permit/verify", ts.signedSubmission(t, 0))
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/permit/verify", ts.signedSubmission(t, 1))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// reads are not limited
	w = ts.do(t, http.MethodGet, "/nonces?owner="+ts.owner.Address.Hex(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleListAuthorizations(t *testing.T) {
	ts := newTestServer(t, nil)
	for i := int64(0); i < 3; i++ {
		w := ts.do(t, http.MethodPost, "/permit/verify", ts.signedSubmission(t, i))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.do(t, http.MethodGet, "/authorizations?owner="+ts.owner.Address.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.AuthorizationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Authorizations, 3)
	for i, auth := range resp.Authorizations {
		assert.Equal(t, int64(i), auth.Nonce.Int64())
	}

	w = ts.do(t, http.MethodGet, "/authorizations?owner="+testutil.SpenderKey(t).Address.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Authorizations)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1337", resp.ChainID)

	require.NoError(t, ts.ledger.Close())

	w = ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(t, http.MethodGet, "/nonces?owner="+ts.owner.Address.Hex(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = ts.do(t, http.MethodPost, "/permit/verify", ts.signedSubmission(t, 0))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatusForCheck(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusForCheck(types.CheckSignature))
	assert.Equal(t, http.StatusUnauthorized, StatusForCheck(types.CheckOwner))
	assert.Equal(t, http.StatusConflict, StatusForCheck(types.CheckNonce))
	assert.Equal(t, http.StatusGone, StatusForCheck(types.CheckDeadline))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusForCheck(types.CheckMessage))
}
