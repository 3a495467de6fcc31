package svm

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
)

// SignatureState is the cluster's view of a submitted transaction.
type SignatureState string

const (
	SignatureUnknown   SignatureState = "unknown"
	SignaturePending   SignatureState = "pending"
	SignatureConfirmed SignatureState = "confirmed"
	SignatureFailed    SignatureState = "failed"
)

// SignedTransfer is a transfer that has been built and signed but not
// necessarily broadcast. Signature is final once signed.
type SignedTransfer struct {
	Tx                   *solana.Transaction
	Signature            string
	Recipient            string
	Lamports             uint64
	LastValidBlockHeight uint64
}

type senderRPC interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context) (uint64, error)
}

// Sender builds, signs and submits System Program transfers from the hot wallet.
type Sender struct {
	rpc          senderRPC
	key          solana.PrivateKey
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewSender creates a sender paying from key.
func NewSender(client senderRPC, key solana.PrivateKey, logger zerolog.Logger) *Sender {
	return &Sender{
		rpc:          client,
		key:          key,
		pollInterval: 2 * time.Second,
		logger:       logger.With().Str("component", "svm_sender").Logger(),
	}
}

// HotWallet returns the public key payouts are sent from.
func (s *Sender) HotWallet() solana.PublicKey {
	return s.key.PublicKey()
}

// PrepareTransfer builds and signs a transfer without broadcasting it, so the
// caller can persist the signature first.
func (s *Sender) PrepareTransfer(ctx context.Context, to string, lamports uint64) (*SignedTransfer, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeValidation, "invalid recipient wallet", err)
	}
	if lamports == 0 {
		return nil, rerrors.New(rerrors.ErrCodeValidation, "transfer amount must be positive", nil)
	}

	blockhash, lastValid, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, rerrors.WrapRaffleError(err, rerrors.ErrCodeRPC, "failed to get latest blockhash")
	}

	from := s.key.PublicKey()
	ix := system.NewTransferInstruction(lamports, from, recipient).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeInternal, "failed to build transfer", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeInternal, "failed to sign transfer", err)
	}

	return &SignedTransfer{
		Tx:                   tx,
		Signature:            tx.Signatures[0].String(),
		Recipient:            to,
		Lamports:             lamports,
		LastValidBlockHeight: lastValid,
	}, nil
}

// Broadcast submits a prepared transfer.
func (s *Sender) Broadcast(ctx context.Context, t *SignedTransfer) error {
	if _, err := s.rpc.SendTransaction(ctx, t.Tx); err != nil {
		return rerrors.WrapRaffleError(err, rerrors.ErrCodeTransfer, "failed to broadcast transfer").
			WithContext("signature", t.Signature)
	}
	s.logger.Info().
		Str("signature", t.Signature).
		Str("recipient", t.Recipient).
		Uint64("lamports", t.Lamports).
		Msg("transfer broadcast")
	return nil
}

// SignatureState reports whether a signature has landed, failed or is unknown.
func (s *Sender) SignatureState(ctx context.Context, signature string) (SignatureState, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return SignatureUnknown, rerrors.New(rerrors.ErrCodeValidation, "invalid transaction signature", err)
	}
	status, err := s.rpc.GetSignatureStatus(ctx, sig)
	if err != nil {
		return SignatureUnknown, rerrors.WrapRaffleError(err, rerrors.ErrCodeRPC, "failed to get signature status")
	}
	return stateFromStatus(status), nil
}

func stateFromStatus(status *rpc.SignatureStatusesResult) SignatureState {
	if status == nil {
		return SignatureUnknown
	}
	if status.Err != nil {
		return SignatureFailed
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return SignatureConfirmed
	default:
		return SignaturePending
	}
}

// WaitForConfirmation polls until the signature is confirmed or failed, or
// ctx expires. An expired context returns the last observed state.
func (s *Sender) WaitForConfirmation(ctx context.Context, signature string) (SignatureState, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	last := SignatureUnknown
	for {
		state, err := s.SignatureState(ctx, signature)
		if err == nil {
			last = state
			if state == SignatureConfirmed || state == SignatureFailed {
				return state, nil
			}
		} else if rerrors.IsCode(err, rerrors.ErrCodeValidation) {
			return SignatureUnknown, err
		}

		select {
		case <-ctx.Done():
			return last, rerrors.New(rerrors.ErrCodeTimeout, "timed out waiting for confirmation", ctx.Err()).
				WithContext("signature", signature)
		case <-ticker.C:
		}
	}
}

// BlockHeight returns the current confirmed block height.
func (s *Sender) BlockHeight(ctx context.Context) (uint64, error) {
	h, err := s.rpc.GetBlockHeight(ctx)
	if err != nil {
		return 0, rerrors.WrapRaffleError(err, rerrors.ErrCodeRPC, "failed to get block height")
	}
	return h, nil
}
