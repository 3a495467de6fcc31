package payout

import (
	"context"

	"github.com/solraffle/raffle-node/raffleNode/chains/svm"
	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
)

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	InFlight  int `json:"inFlight"`
	Errors    int `json:"errors"`
}

// Reconcile resolves every signed payout: confirmed ones are settled, failed
// or expired ones are marked failed so the next Pay re-signs them.
func (e *Executor) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	signed, err := e.store.ListPayoutsByStatus(ctx, "", rafflestore.PayoutStatusSigned)
	if err != nil {
		return res, err
	}

	for i := range signed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p := &signed[i]
		res.Checked++

		var state svm.SignatureState
		op := &rerrors.RetryOperation{
			Name:   "payout_signature_status",
			Config: e.retry,
			Fn: func() error {
				var serr error
				state, serr = e.chain.SignatureState(ctx, p.TxSignature)
				return serr
			},
		}
		if err := op.Execute(ctx); err != nil {
			e.logger.Warn().Err(err).Str("payout_id", p.ID).Msg("reconcile status check failed")
			res.Errors++
			continue
		}

		switch state {
		case svm.SignatureConfirmed:
			if _, err := e.settle(ctx, p, p.TxSignature); err != nil {
				res.Errors++
				continue
			}
			res.Confirmed++
		case svm.SignatureFailed:
			if err := e.fail(ctx, p, "transaction failed on chain"); err != nil {
				res.Errors++
				continue
			}
			res.Failed++
		default:
			expired, err := e.expired(ctx, p)
			if err != nil {
				res.Errors++
				continue
			}
			if !expired {
				res.InFlight++
				continue
			}
			if err := e.fail(ctx, p, "blockhash expired before confirmation"); err != nil {
				res.Errors++
				continue
			}
			res.Failed++
		}
	}

	if res.Checked > 0 {
		e.logger.Info().
			Int("checked", res.Checked).
			Int("confirmed", res.Confirmed).
			Int("failed", res.Failed).
			Int("in_flight", res.InFlight).
			Int("errors", res.Errors).
			Msg("payout reconciliation finished")
	}
	return res, nil
}
