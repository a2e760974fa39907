package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when the service answers 429
var ErrRateLimited = errors.New("permit service rate limit exceeded")

// ClientConfig holds the configuration for the permit client
type ClientConfig struct {
	ServerURL string
	Logger    *zap.Logger

	// HTTPClient defaults to a client with a 30 second timeout
	HTTPClient *http.Client
}

// PermitClient talks to a permit verifier service
type PermitClient struct {
	serverURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPermitClient creates a new permit client instance
func NewPermitClient(config *ClientConfig) (*PermitClient, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if _, err := url.ParseRequestURI(config.ServerURL); err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &PermitClient{
		serverURL:  strings.TrimRight(config.ServerURL, "/"),
		httpClient: httpClient,
		logger:     config.Logger,
	}, nil
}

// GetDomain fetches the service's domain and separator
func (c *PermitClient) GetDomain(ctx context.Context) (*types.DomainResponse, error) {
	var resp types.DomainResponse
	if err := c.do(ctx, http.MethodGet, "/domain", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetNonce returns the nonce owner must sign over next
func (c *PermitClient) GetNonce(ctx context.Context, owner common.Address) (*types.NonceResponse, error) {
	var resp types.NonceResponse
	path := "/nonces?owner=" + url.QueryEscape(owner.Hex())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Digest asks the service to hash msg under its domain
func (c *PermitClient) Digest(ctx context.Context, msg *types.PermitMessage) (*types.DigestResponse, error) {
	var resp types.DigestResponse
	if err := c.do(ctx, http.MethodPost, "/permit/digest", &types.DigestRequest{Message: msg}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify submits a signed permit. Rejections come back as
// *types.VerificationError and match the sentinel kinds with errors.Is.
func (c *PermitClient) Verify(ctx context.Context, msg *types.PermitMessage, sig *types.Signature) (*types.Authorization, error) {
	var resp types.VerifyResponse
	sub := &types.PermitSubmission{Message: msg, Signature: sig}
	if err := c.do(ctx, http.MethodPost, "/permit/verify", sub, &resp); err != nil {
		return nil, err
	}
	if resp.Authorization == nil {
		return nil, fmt.Errorf("permit service returned no authorization")
	}

	c.logger.Sugar().Infow("Permit authorized",
		"id", resp.Authorization.ID.String(),
		"owner", resp.Authorization.Owner.Hex(),
		"nonce", resp.Authorization.Nonce.String(),
	)
	return resp.Authorization, nil
}

// ListAuthorizations returns the authorizations recorded for owner
func (c *PermitClient) ListAuthorizations(ctx context.Context, owner common.Address) ([]*types.Authorization, error) {
	var resp types.AuthorizationsResponse
	path := "/authorizations?owner=" + url.QueryEscape(owner.Hex())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Authorizations, nil
}

// Health returns nil when the service and its ledger are usable
func (c *PermitClient) Health(ctx context.Context) error {
	var resp types.HealthResponse
	return c.do(ctx, http.MethodGet, "/health", nil, &resp)
}

func (c *PermitClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Sugar().Debugw("Sending request to permit service", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to contact permit service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError turns a non-200 response back into the error the server saw
func decodeError(status int, body []byte) error {
	if status == http.StatusTooManyRequests {
		return ErrRateLimited
	}

	var errResp types.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("permit service returned status %d: %s", status, strings.TrimSpace(string(body)))
	}

	if errResp.Check != "" {
		return &types.VerificationError{
			Check:  errResp.Check,
			Err:    types.ErrorForCheck(errResp.Check),
			Detail: errResp.Error,
		}
	}
	return fmt.Errorf("permit service returned status %d: %s", status, errResp.Error)
}
