package main

import (
	"context"
	"math/big"
	"os"
	"time"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/config"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/permit"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/signer/remoteSigner"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/Layr-Labs/eigenx-permit-go/pkg/verifier"
	"github.com/ethereum/go-ethereum/common"
)

// Signs a throwaway permit through a remote wallet (anvil, clef, Web3Signer)
// and checks the signature recovers to the configured account.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := os.Getenv(config.EnvPermitRemoteSignerURL)
	if url == "" {
		url = "http://localhost:8545"
	}
	rsc := &config.RemoteSignerConfig{
		Url:         url,
		FromAddress: os.Getenv(config.EnvPermitRemoteSignerAccount),
	}
	if err := rsc.Validate(); err != nil {
		l.Sugar().Fatalw("invalid remote signer config", "error", err)
	}
	account := common.HexToAddress(rsc.FromAddress)

	rs, err := remoteSigner.NewRemoteSigner(ctx, rsc.Url, account, l)
	if err != nil {
		l.Sugar().Fatalw("failed to create remote signer", "error", err)
	}
	defer rs.Close()

	domain := &types.Domain{
		Name:              "Token",
		Version:           "1",
		ChainID:           big.NewInt(int64(config.ChainId_EthereumAnvil)),
		VerifyingContract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
	}
	msg := &types.PermitMessage{
		Owner:    account,
		Spender:  common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		Value:    big.NewInt(1_000_000),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(time.Now().Add(time.Hour).Unix()),
	}

	sig, digest, err := signer.SignPermit(ctx, rs, domain, msg)
	if err != nil {
		l.Sugar().Fatalw("failed to sign permit", "error", err)
	}

	local, err := permit.Digest(domain, msg)
	if err != nil {
		l.Sugar().Fatalw("failed to compute digest", "error", err)
	}
	recovered, err := verifier.Recover(local, sig)
	if err != nil {
		l.Sugar().Fatalw("failed to recover signer", "error", err)
	}

	l.Sugar().Infow("Remote signature",
		"digest", digest.Hex(),
		"localDigest", local.Hex(),
		"signature", sig.Hex(),
		"recovered", recovered.Hex(),
		"matches", recovered == account,
	)
}
