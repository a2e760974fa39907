package tests

import (
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/client"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/ledger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/server"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/verifier"
	"go.uber.org/zap"
)

// TestCluster is a set of permit servers for one domain that share a single
// nonce ledger, the way horizontally scaled verifiers share badger or redis.
type TestCluster struct {
	Servers    []*httptest.Server
	ServerURLs []string
	Verifiers  []*verifier.Verifier
	Ledger     ledger.INonceLedger
	Domain     *types.Domain
	NumServers int

	now    atomic.Int64
	logger *zap.Logger
}

// NewTestCluster starts numServers HTTP servers over l. The cluster clock
// starts at referenceNow and only moves through SetTime.
func NewTestCluster(t *testing.T, numServers int, domain *types.Domain, l ledger.INonceLedger, referenceNow int64, logger *zap.Logger) *TestCluster {
	t.Helper()
	tc := &TestCluster{
		Ledger:     l,
		Domain:     domain,
		NumServers: numServers,
		logger:     logger,
	}
	tc.now.Store(referenceNow)

	for i := 0; i < numServers; i++ {
		v, err := verifier.NewVerifier(domain, l, logger)
		if err != nil {
			t.Fatalf("Failed to create verifier %d: %v", i, err)
		}
		srv, err := server.NewServer(v, &server.ServerConfig{Clock: tc.clock}, logger)
		if err != nil {
			t.Fatalf("Failed to create server %d: %v", i, err)
		}
		ts := httptest.NewServer(srv.GetHandler())

		tc.Verifiers = append(tc.Verifiers, v)
		tc.Servers = append(tc.Servers, ts)
		tc.ServerURLs = append(tc.ServerURLs, ts.URL)

		logger.Sugar().Debugw("Started server", "index", i, "url", ts.URL)
	}
	return tc
}

func (tc *TestCluster) clock() time.Time {
	return time.Unix(tc.now.Load(), 0)
}

// SetTime moves the clock seen by every server
func (tc *TestCluster) SetTime(unix int64) {
	tc.now.Store(unix)
}

// Client returns a PermitClient for server i
func (tc *TestCluster) Client(t *testing.T, i int) *client.PermitClient {
	t.Helper()
	c, err := client.NewPermitClient(&client.ClientConfig{
		ServerURL: tc.ServerURLs[i],
		Logger:    tc.logger,
	})
	if err != nil {
		t.Fatalf("Failed to create client for server %d: %v", i, err)
	}
	return c
}

// Close stops every server. The ledger is left open for the caller.
func (tc *TestCluster) Close() {
	for _, s := range tc.Servers {
		s.Close()
	}
}
