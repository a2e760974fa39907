package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

const maxRequestBodyBytes = 1 << 20

// StatusForCheck maps a failed verification check to its HTTP status
func StatusForCheck(check types.VerificationCheck) int {
	switch check {
	case types.CheckSignature:
		return http.StatusBadRequest
	case types.CheckOwner:
		return http.StatusUnauthorized
	case types.CheckNonce:
		return http.StatusConflict
	case types.CheckDeadline:
		return http.StatusGone
	default:
		return http.StatusUnprocessableEntity
	}
}

// handleGetDomain handles GET /domain
func (s *Server) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	s.writeJSON(w, http.StatusOK, &types.DomainResponse{
		Domain:          s.verifier.Domain(),
		DomainSeparator: s.verifier.DomainSeparator(),
	})
}

// handleGetNonce handles GET /nonces?owner=0x..
func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	owner, ok := s.ownerParam(w, r)
	if !ok {
		return
	}

	nonce, err := s.verifier.Ledger().CurrentNonce(owner)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to read nonce", "owner", owner.Hex(), "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read nonce", "")
		return
	}
	s.writeJSON(w, http.StatusOK, &types.NonceResponse{Owner: owner, Nonce: nonce})
}

// handleListAuthorizations handles GET /authorizations?owner=0x..
func (s *Server) handleListAuthorizations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	owner, ok := s.ownerParam(w, r)
	if !ok {
		return
	}

	auths, err := s.verifier.Ledger().ListAuthorizations(owner)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to list authorizations", "owner", owner.Hex(), "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list authorizations", "")
		return
	}
	s.writeJSON(w, http.StatusOK, &types.AuthorizationsResponse{Owner: owner, Authorizations: auths})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	resp := &types.HealthResponse{
		Status:  "ok",
		ChainID: s.verifier.Domain().ChainID.String(),
	}
	if err := s.verifier.Ledger().HealthCheck(); err != nil {
		s.logger.Sugar().Warnw("Ledger health check failed", "error", err)
		resp.Status = "unavailable"
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDigest handles POST /permit/digest
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var req types.DigestRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Message == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "message is required", types.CheckMessage)
		return
	}

	structHash, digest, err := s.verifier.Digest(req.Message)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error(), types.CheckMessage)
		return
	}

	typedData, err := permit.TypedData(s.verifier.Domain(), req.Message)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to build typed data", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	s.writeJSON(w, http.StatusOK, &types.DigestResponse{
		StructHash: structHash,
		Digest:     digest,
		TypedData:  typedData,
	})
}

// handleVerify handles POST /permit/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
		return
	}

	var req types.PermitSubmission
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Message == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "message is required", types.CheckMessage)
		return
	}
	if req.Signature == nil {
		s.writeError(w, http.StatusBadRequest, "signature is required", types.CheckSignature)
		return
	}

	auth, err := s.verifier.VerifyPermit(req.Message, req.Signature, s.referenceTime())
	if err != nil {
		var verr *types.VerificationError
		if errors.As(err, &verr) {
			detail := verr.Detail
			if detail == "" {
				detail = verr.Err.Error()
			}
			s.writeError(w, StatusForCheck(verr.Check), detail, verr.Check)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to verify permit", "")
		return
	}

	s.writeJSON(w, http.StatusOK, &types.VerifyResponse{Authorization: auth})
}

func (s *Server) ownerParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.URL.Query().Get("owner")
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "owner is required", "")
		return common.Address{}, false
	}
	if !common.IsHexAddress(raw) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid owner address: %q", raw), "")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err), "")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, check types.VerificationCheck) {
	s.writeJSON(w, status, &types.ErrorResponse{Error: msg, Check: check})
}
