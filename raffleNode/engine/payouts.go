package engine

import (
	"context"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// PayoutResult reports one transfer of a payout or refund pass.
type PayoutResult struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Recipient string `json:"recipient,omitempty"`
	Status    string `json:"status"`
	Lamports  uint64 `json:"lamports"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CreatorPayout is the settlement of a raffle's revenue.
type CreatorPayout struct {
	RaffleID       string `json:"raffleId"`
	GrossLamports  uint64 `json:"grossLamports"`
	FeeLamports    uint64 `json:"platformFeeLamports"`
	PayoutLamports uint64 `json:"payoutAmount"`
	Signature      string `json:"signature"`
}

// PayoutWinner sends the prize of a drawn raffle to its winner.
func (s *Service) PayoutWinner(ctx context.Context, raffleID string) (*store.Payout, error) {
	var out *store.Payout
	err := s.withLock(ctx, raffleKey(raffleID), func() error {
		r, err := s.store.GetRaffle(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status(r.Status) != raffle.StatusDrawn {
			return rerrors.ForRaffle(rerrors.ErrCodeValidation, raffleID, "raffle is not in drawn status", nil)
		}
		if r.WinnerWallet == "" {
			return rerrors.ForRaffle(rerrors.ErrCodeValidation, raffleID, "raffle has no winner", nil)
		}
		out, err = s.payouts.Pay(ctx, raffleID, rafflestore.PayoutKindPrize, r.WinnerWallet, r.PrizeLamports)
		return err
	})
	return out, err
}

// PayoutCreator pays a raffle's revenue, minus the platform fee, to its
// creator and completes the raffle. A raffle without revenue completes with
// no transfer.
func (s *Service) PayoutCreator(ctx context.Context, raffleID string) (*CreatorPayout, error) {
	var out *CreatorPayout
	err := s.withLock(ctx, raffleKey(raffleID), func() error {
		r, err := s.store.GetRaffle(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status(r.Status) != raffle.StatusPendingPayout {
			return rerrors.ForRaffle(rerrors.ErrCodeValidation, raffleID, "raffle is not in pending_payout status", nil)
		}
		out, err = s.payCreator(ctx, r)
		return err
	})
	return out, err
}

func (s *Service) payCreator(ctx context.Context, r *store.Raffle) (*CreatorPayout, error) {
	fee := raffle.PlatformFee(r.TotalRevenueLamports, s.opts.PlatformFeeBps)
	amount := raffle.CreatorPayout(r.TotalRevenueLamports, s.opts.PlatformFeeBps)

	p, err := s.payouts.Pay(ctx, r.ID, rafflestore.PayoutKindCreator, r.CreatorWallet, amount)
	if err != nil {
		return nil, err
	}
	return &CreatorPayout{
		RaffleID:       r.ID,
		GrossLamports:  r.TotalRevenueLamports,
		FeeLamports:    fee,
		PayoutLamports: amount,
		Signature:      p.TxSignature,
	}, nil
}

// PayoutDue runs the automatic payouts: prizes of drawn raffles still
// waiting for their transfer, then creator revenue of raffles whose
// quarantine since the draw has elapsed.
func (s *Service) PayoutDue(ctx context.Context) ([]PayoutResult, error) {
	results := make([]PayoutResult, 0)

	if s.opts.AutoPrizePayout {
		drawn, err := s.store.ListByStatus(ctx, raffle.StatusDrawn)
		if err != nil {
			return nil, err
		}
		for i := range drawn {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			r := &drawn[i]
			results = append(results, s.payLocked(ctx, r.ID, raffle.StatusDrawn, rafflestore.PayoutKindPrize,
				func(cur *store.Raffle) (uint64, string, error) {
					p, err := s.payouts.Pay(ctx, cur.ID, rafflestore.PayoutKindPrize, cur.WinnerWallet, cur.PrizeLamports)
					if err != nil {
						return cur.PrizeLamports, "", err
					}
					return p.Lamports, p.TxSignature, nil
				}))
		}
	}

	due, err := s.store.ListDueForPayout(ctx, s.now().Add(-s.opts.PayoutQuarantine))
	if err != nil {
		return results, err
	}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r := &due[i]
		results = append(results, s.payLocked(ctx, r.ID, raffle.StatusPendingPayout, rafflestore.PayoutKindCreator,
			func(cur *store.Raffle) (uint64, string, error) {
				cp, err := s.payCreator(ctx, cur)
				if err != nil {
					return raffle.CreatorPayout(cur.TotalRevenueLamports, s.opts.PlatformFeeBps), "", err
				}
				return cp.PayoutLamports, cp.Signature, nil
			}))
	}
	return results, nil
}

// payLocked re-reads the raffle under its lock and pays only if it is still
// in the expected status.
func (s *Service) payLocked(
	ctx context.Context,
	raffleID string,
	want raffle.Status,
	kind string,
	pay func(*store.Raffle) (uint64, string, error),
) PayoutResult {
	res := PayoutResult{ID: raffleID, Kind: kind}

	release, ok := s.tryLock(raffleKey(raffleID))
	if !ok {
		res.Status = "skipped"
		return res
	}
	defer release()

	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		res.Status = rafflestore.PayoutStatusFailed
		res.Error = rerrors.PublicMessage(err)
		return res
	}
	if raffle.Status(r.Status) != want {
		res.Status = "skipped"
		return res
	}

	res.Recipient = r.CreatorWallet
	if kind == rafflestore.PayoutKindPrize {
		res.Recipient = r.WinnerWallet
	}
	lamports, sig, err := pay(r)
	res.Lamports = lamports
	if err != nil {
		s.logger.Error().Err(err).Str("raffle_id", raffleID).Str("kind", kind).Msg("automatic payout failed")
		res.Status = rafflestore.PayoutStatusFailed
		res.Error = rerrors.PublicMessage(err)
		return res
	}
	res.Status = rafflestore.PayoutStatusConfirmed
	res.Signature = sig
	return res
}

// ProcessRefunds pays out queued refunds of cancelled raffles.
func (s *Service) ProcessRefunds(ctx context.Context) ([]PayoutResult, error) {
	open, err := s.store.ListPayoutsByStatus(ctx, rafflestore.PayoutKindRefund,
		rafflestore.PayoutStatusPending, rafflestore.PayoutStatusFailed)
	if err != nil {
		return nil, err
	}

	results := make([]PayoutResult, 0, len(open))
	for i := range open {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		p := &open[i]
		res := PayoutResult{ID: p.RaffleID, Kind: p.Kind, Recipient: p.Recipient, Lamports: p.Lamports}

		release, ok := s.tryLock(raffleKey(p.RaffleID))
		if !ok {
			res.Status = "skipped"
			results = append(results, res)
			continue
		}
		settled, err := s.payouts.Pay(ctx, p.RaffleID, p.Kind, p.Recipient, p.Lamports)
		release()

		if err != nil {
			s.logger.Error().Err(err).Str("raffle_id", p.RaffleID).Str("recipient", p.Recipient).Msg("refund failed")
			res.Status = rafflestore.PayoutStatusFailed
			res.Error = rerrors.PublicMessage(err)
		} else {
			res.Status = settled.Status
			res.Signature = settled.TxSignature
		}
		results = append(results, res)
	}
	return results, nil
}
