package svm

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// Client bundles the RPC pool with the verifier and sender bound to one hot wallet.
type Client struct {
	*Verifier
	*Sender
	rpc *RPCClient
}

// NewClient connects to the RPC endpoints and binds them to the hot wallet key.
func NewClient(ctx context.Context, rpcURLs []string, hotWallet solana.PrivateKey, logger zerolog.Logger) (*Client, error) {
	rpcClient, err := NewRPCClient(ctx, rpcURLs, logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		Verifier: NewVerifier(rpcClient, hotWallet.PublicKey(), logger),
		Sender:   NewSender(rpcClient, hotWallet, logger),
		rpc:      rpcClient,
	}, nil
}

// HotWalletBalance returns the lamports currently held by the hot wallet.
func (c *Client) HotWalletBalance(ctx context.Context) (uint64, error) {
	return c.rpc.GetBalance(ctx, c.HotWallet())
}

// IsHealthy reports whether any RPC endpoint answers.
func (c *Client) IsHealthy(ctx context.Context) bool {
	return c.rpc.IsHealthy(ctx)
}

// Close releases the RPC endpoints.
func (c *Client) Close() {
	c.rpc.Close()
}
