// Package payout moves lamports out of the hot wallet through a ledger saga.
// Every transfer is recorded as a payout row; the signature is persisted
// before broadcast so a crash between sending and confirming can be
// reconciled instead of paying twice.
package payout

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/chains/svm"
	"github.com/solraffle/raffle-node/raffleNode/constant"
	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/metrics"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

//go:generate mockgen -destination=../mocks/mock_chain.go -package=mocks . Chain

// Chain is the subset of the Solana client the executor needs.
type Chain interface {
	PrepareTransfer(ctx context.Context, to string, lamports uint64) (*svm.SignedTransfer, error)
	Broadcast(ctx context.Context, t *svm.SignedTransfer) error
	SignatureState(ctx context.Context, signature string) (svm.SignatureState, error)
	WaitForConfirmation(ctx context.Context, signature string) (svm.SignatureState, error)
	BlockHeight(ctx context.Context) (uint64, error)
}

// Executor runs payouts against the ledger in rafflestore.
type Executor struct {
	store          *rafflestore.Store
	chain          Chain
	confirmTimeout time.Duration
	retry          *rerrors.RetryConfig
	now            func() time.Time
	logger         zerolog.Logger
}

// NewExecutor creates an executor. confirmTimeout bounds how long Pay waits
// for a broadcast transfer to confirm.
func NewExecutor(s *rafflestore.Store, chain Chain, confirmTimeout time.Duration, logger zerolog.Logger) *Executor {
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	return &Executor{
		store:          s,
		chain:          chain,
		confirmTimeout: confirmTimeout,
		retry:          rerrors.DefaultRetryConfig(),
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logger.With().Str("component", "payout").Logger(),
	}
}

// Pay sends lamports to recipient for (raffleID, kind) exactly once. Calling
// it again for the same target resumes the saga: a confirmed payout is
// returned as is, an in-flight one is checked on chain, a failed one is
// re-signed.
func (e *Executor) Pay(ctx context.Context, raffleID, kind, recipient string, lamports uint64) (*store.Payout, error) {
	p, err := e.store.EnsurePayout(ctx, raffleID, kind, recipient, lamports)
	if err != nil {
		return nil, err
	}
	log := e.logger.With().
		Str("payout_id", p.ID).
		Str("raffle_id", raffleID).
		Str("kind", kind).
		Logger()

	switch p.Status {
	case rafflestore.PayoutStatusConfirmed:
		return p, nil
	case rafflestore.PayoutStatusSigned:
		done, settled, err := e.resume(ctx, p)
		if err != nil || done {
			return settled, err
		}
	}

	if p.Lamports == 0 {
		log.Info().Msg("nothing to transfer, settling without a transaction")
		return e.settle(ctx, p, constant.NoRevenueSentinel)
	}

	transfer, err := e.chain.PrepareTransfer(ctx, p.Recipient, p.Lamports)
	if err != nil {
		return nil, err
	}
	if err := e.store.MarkPayoutSigned(ctx, p.ID, transfer.Signature, transfer.LastValidBlockHeight); err != nil {
		return nil, err
	}
	p.Status = rafflestore.PayoutStatusSigned
	p.TxSignature = transfer.Signature
	p.LastValidBlockHeight = transfer.LastValidBlockHeight

	// Resending the same signed transaction cannot double spend.
	op := &rerrors.RetryOperation{
		Name:   "broadcast_payout",
		Fn:     func() error { return e.chain.Broadcast(ctx, transfer) },
		Config: e.retry,
		OnRetry: func(attempt int, err error) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("broadcast failed, retrying")
		},
	}
	if err := op.Execute(ctx); err != nil {
		// The transaction may still have reached a leader. It stays signed
		// until the reconciler sees it land or its blockhash expire.
		metrics.RecordPayout(kind, rafflestore.PayoutStatusSigned, p.Lamports)
		return nil, err
	}

	return e.await(ctx, p)
}

// resume handles a payout left signed by an earlier attempt. It reports done
// when the caller must not sign a new transfer.
func (e *Executor) resume(ctx context.Context, p *store.Payout) (bool, *store.Payout, error) {
	state, err := e.chain.SignatureState(ctx, p.TxSignature)
	if err != nil {
		return true, nil, err
	}
	switch state {
	case svm.SignatureConfirmed:
		settled, err := e.settle(ctx, p, p.TxSignature)
		return true, settled, err
	case svm.SignaturePending:
		settled, err := e.await(ctx, p)
		return true, settled, err
	case svm.SignatureFailed:
		if err := e.fail(ctx, p, "transaction failed on chain"); err != nil {
			return true, nil, err
		}
		return false, nil, nil
	}

	expired, err := e.expired(ctx, p)
	if err != nil {
		return true, nil, err
	}
	if !expired {
		return true, nil, rerrors.ForRaffle(rerrors.ErrCodeConflict, p.RaffleID,
			"payout is in flight, try again shortly", nil).WithContext("signature", p.TxSignature)
	}
	if err := e.fail(ctx, p, "blockhash expired before confirmation"); err != nil {
		return true, nil, err
	}
	return false, nil, nil
}

func (e *Executor) await(ctx context.Context, p *store.Payout) (*store.Payout, error) {
	wctx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	state, err := e.chain.WaitForConfirmation(wctx, p.TxSignature)
	switch {
	case state == svm.SignatureConfirmed:
		return e.settle(ctx, p, p.TxSignature)
	case state == svm.SignatureFailed:
		if ferr := e.fail(ctx, p, "transaction failed on chain"); ferr != nil {
			return nil, ferr
		}
		return nil, rerrors.ForRaffle(rerrors.ErrCodeTransfer, p.RaffleID, "payout transaction failed", nil).
			WithContext("signature", p.TxSignature)
	case err != nil:
		return nil, err
	default:
		return nil, rerrors.ForRaffle(rerrors.ErrCodeTimeout, p.RaffleID, "payout not confirmed yet", nil).
			WithContext("signature", p.TxSignature)
	}
}

func (e *Executor) settle(ctx context.Context, p *store.Payout, signature string) (*store.Payout, error) {
	settled, err := e.store.SettlePayout(ctx, p.ID, signature, e.now())
	if err != nil {
		return nil, err
	}
	metrics.RecordPayout(p.Kind, rafflestore.PayoutStatusConfirmed, p.Lamports)
	e.logger.Info().
		Str("payout_id", p.ID).
		Str("raffle_id", p.RaffleID).
		Str("kind", p.Kind).
		Str("recipient", p.Recipient).
		Uint64("lamports", p.Lamports).
		Str("signature", signature).
		Msg("payout confirmed")
	return settled, nil
}

func (e *Executor) fail(ctx context.Context, p *store.Payout, reason string) error {
	metrics.RecordPayout(p.Kind, rafflestore.PayoutStatusFailed, p.Lamports)
	if err := e.store.MarkPayoutFailed(ctx, p.ID, reason); err != nil {
		return err
	}
	p.Status = rafflestore.PayoutStatusFailed
	return nil
}

func (e *Executor) expired(ctx context.Context, p *store.Payout) (bool, error) {
	height, err := e.chain.BlockHeight(ctx)
	if err != nil {
		return false, err
	}
	return height > p.LastValidBlockHeight, nil
}
