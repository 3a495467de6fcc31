// Package svm talks to Solana: a failover RPC client, on-chain transfer
// verification for deposits and ticket payments, and the hot-wallet sender
// used for prize, creator and refund payouts.
package svm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/metrics"
)

// RPCClient round-robins requests over a set of Solana RPC endpoints and
// fails over to the next endpoint on error.
type RPCClient struct {
	clients []*rpc.Client
	index   uint64
	mu      sync.RWMutex
	logger  zerolog.Logger
}

// NewRPCClient connects to every URL that reports healthy. At least one
// endpoint must be reachable.
func NewRPCClient(ctx context.Context, rpcURLs []string, logger zerolog.Logger) (*RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}

	log := logger.With().Str("component", "svm_rpc_client").Logger()
	clients := make([]*rpc.Client, 0, len(rpcURLs))

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, url := range rpcURLs {
		client := rpc.New(url)

		health, err := client.GetHealth(ctx)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to connect to RPC endpoint, skipping")
			continue
		}
		if health != "ok" {
			log.Warn().Str("url", url).Str("health", health).Msg("node is not healthy, skipping")
			continue
		}

		clients = append(clients, client)
		log.Info().Str("url", url).Msg("connected to RPC endpoint")
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("failed to connect to any valid RPC endpoints")
	}

	return &RPCClient{
		clients: clients,
		logger:  log,
	}, nil
}

// executeWithFailover runs fn against the next endpoint, moving on when it
// fails. rpc.ErrNotFound is an answer, not an endpoint failure, and is
// returned immediately.
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(*rpc.Client) error) error {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return rerrors.Newf(rerrors.ErrCodeRPC, "no RPC clients available for %s", operation)
	}

	var lastErr error
	for attempt := 0; attempt < len(clients); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		index := atomic.AddUint64(&rc.index, 1) - 1
		client := clients[index%uint64(len(clients))]

		err := fn(client)
		if err == nil || errors.Is(err, rpc.ErrNotFound) {
			return err
		}
		lastErr = err

		rc.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	metrics.RecordRPCError(operation)
	return rerrors.New(rerrors.ErrCodeRPC,
		fmt.Sprintf("operation %s failed after trying %d endpoints", operation, len(clients)), lastErr)
}

// IsHealthy reports whether any endpoint answers a slot query.
func (rc *RPCClient) IsHealthy(ctx context.Context) bool {
	_, err := rc.GetBlockHeight(ctx)
	return err == nil
}

// GetBlockHeight returns the confirmed block height, used to tell whether a
// signed transaction's blockhash has expired.
func (rc *RPCClient) GetBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := rc.executeWithFailover(ctx, "get_block_height", func(client *rpc.Client) error {
		var innerErr error
		height, innerErr = client.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		return innerErr
	})
	return height, err
}

// GetLatestBlockhash returns a recent blockhash and the last block height at
// which a transaction built on it is still valid.
func (rc *RPCClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	var (
		blockhash solana.Hash
		lastValid uint64
	)
	err := rc.executeWithFailover(ctx, "get_latest_blockhash", func(client *rpc.Client) error {
		resp, innerErr := client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if innerErr != nil {
			return innerErr
		}
		blockhash = resp.Value.Blockhash
		lastValid = resp.Value.LastValidBlockHeight
		return nil
	})
	return blockhash, lastValid, err
}

// GetBalance returns the lamport balance of an account.
func (rc *RPCClient) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var balance uint64
	err := rc.executeWithFailover(ctx, "get_balance", func(client *rpc.Client) error {
		resp, innerErr := client.GetBalance(ctx, account, rpc.CommitmentConfirmed)
		if innerErr != nil {
			return innerErr
		}
		balance = resp.Value
		return nil
	})
	return balance, err
}

// GetTransaction fetches a confirmed transaction. Unknown signatures yield rpc.ErrNotFound.
func (rc *RPCClient) GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	var tx *rpc.GetTransactionResult
	err := rc.executeWithFailover(ctx, "get_transaction", func(client *rpc.Client) error {
		var innerErr error
		maxVersion := uint64(0)
		tx, innerErr = client.GetTransaction(
			ctx,
			signature,
			&rpc.GetTransactionOpts{
				Encoding:                       solana.EncodingBase64,
				Commitment:                     rpc.CommitmentConfirmed,
				MaxSupportedTransactionVersion: &maxVersion,
			},
		)
		return innerErr
	})
	return tx, err
}

// GetSignatureStatus returns the cluster's view of one signature, nil when
// the cluster has never seen it.
func (rc *RPCClient) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error) {
	var status *rpc.SignatureStatusesResult
	err := rc.executeWithFailover(ctx, "get_signature_statuses", func(client *rpc.Client) error {
		resp, innerErr := client.GetSignatureStatuses(ctx, true, signature)
		if innerErr != nil {
			return innerErr
		}
		if resp != nil && len(resp.Value) > 0 {
			status = resp.Value[0]
		}
		return nil
	})
	return status, err
}

// SendTransaction broadcasts a signed transaction with preflight checks.
func (rc *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("transaction has no signatures")
	}
	sig := tx.Signatures[0]

	err := rc.executeWithFailover(ctx, "send_transaction", func(client *rpc.Client) error {
		_, innerErr := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		return innerErr
	})
	return sig, err
}

// Close drops all endpoints.
func (rc *RPCClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.clients = nil
}
