package core

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/solraffle/raffle-node/raffleNode/engine"
	"github.com/solraffle/raffle-node/raffleNode/payout"
)

// Chain is everything the node needs from Solana: payment verification,
// payouts from the hot wallet and health probes.
type Chain interface {
	payout.Chain
	engine.TransferVerifier
	HotWallet() solana.PublicKey
	HotWalletBalance(ctx context.Context) (uint64, error)
	IsHealthy(ctx context.Context) bool
	Close()
}
