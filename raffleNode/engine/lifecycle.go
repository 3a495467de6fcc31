package engine

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/solraffle/raffle-node/raffleNode/chains/svm"
	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/metrics"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// CreateRequest is a new raffle as submitted by its creator.
type CreateRequest struct {
	raffle.CreateParams
	DisplayName      string
	DepositSignature string // optional; may be submitted later
}

// DepositResult reports one raffle of a deposit verification pass.
type DepositResult struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Received  uint64 `json:"received,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Deposit verification outcomes beyond the svm transfer statuses.
const (
	DepositActivated = "activated"
	DepositSkipped   = "skipped"
	DepositError     = "error"
)

func validSignature(sig string) error {
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return rerrors.New(rerrors.ErrCodeValidation, "invalid transaction signature", err)
	}
	return nil
}

func (s *Service) ensureUnused(ctx context.Context, sig string) error {
	used, err := s.store.SignatureUsed(ctx, sig)
	if err != nil {
		return err
	}
	if used {
		return rerrors.New(rerrors.ErrCodeConflict, "transaction signature already used", nil)
	}
	return nil
}

// CreateRaffle validates and stores a raffle waiting for its prize deposit.
func (s *Service) CreateRaffle(ctx context.Context, req CreateRequest) (*store.Raffle, error) {
	if err := raffle.ValidateCreate(req.CreateParams, s.opts.Limits); err != nil {
		return nil, err
	}

	now := s.now()
	r := &store.Raffle{
		ID:                  uuid.NewString(),
		CreatorWallet:       req.CreatorWallet,
		CreatorDisplayName:  req.DisplayName,
		RaffleType:          string(req.RaffleType),
		IsFree:              req.IsFree,
		PrizeLamports:       req.Prize,
		TicketPriceLamports: req.TicketPrice,
		MaxTickets:          req.MaxTickets,
		EndTime:             now.Add(time.Duration(req.DurationHours) * time.Hour),
		Status:              string(raffle.StatusWaitingDeposit),
	}
	if req.DepositSignature != "" {
		if err := validSignature(req.DepositSignature); err != nil {
			return nil, err
		}
		if err := s.ensureUnused(ctx, req.DepositSignature); err != nil {
			return nil, err
		}
		sig := req.DepositSignature
		r.DepositTxSignature = &sig
	}

	if err := s.store.CreateRaffle(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("raffle_id", r.ID).
		Str("creator", r.CreatorWallet).
		Str("type", r.RaffleType).
		Uint64("prize_lamports", r.PrizeLamports).
		Uint64("ticket_price_lamports", r.TicketPriceLamports).
		Uint32("max_tickets", r.MaxTickets).
		Time("end_time", r.EndTime).
		Msg("raffle submitted, waiting for deposit")
	return r, nil
}

// SubmitDeposit attaches the creator's deposit transaction to a raffle that
// is still waiting for it. Resubmitting replaces the previous signature.
func (s *Service) SubmitDeposit(ctx context.Context, raffleID, creator, signature string) (*store.Raffle, error) {
	if err := validSignature(signature); err != nil {
		return nil, err
	}

	var out *store.Raffle
	err := s.withLock(ctx, raffleKey(raffleID), func() error {
		r, err := s.store.GetRaffle(ctx, raffleID)
		if err != nil {
			return err
		}
		if r.CreatorWallet != creator {
			return rerrors.ForRaffle(rerrors.ErrCodeForbidden, raffleID, "only the creator can submit the deposit", nil)
		}
		if r.DepositTxSignature != nil && *r.DepositTxSignature == signature {
			out = r
			return nil
		}
		if err := s.ensureUnused(ctx, signature); err != nil {
			return err
		}
		if err := s.store.SetDepositSignature(ctx, raffleID, signature); err != nil {
			return err
		}
		out, err = s.store.GetRaffle(ctx, raffleID)
		return err
	})
	return out, err
}

// DeleteRaffle removes a raffle. Active raffles run to their draw or
// cancellation, and raffles whose funds are being paid out or refunded are
// refused. Signatures the raffle redeemed stay unusable after deletion.
func (s *Service) DeleteRaffle(ctx context.Context, raffleID string) error {
	return s.withLock(ctx, raffleKey(raffleID), func() error {
		r, err := s.store.GetRaffle(ctx, raffleID)
		if err != nil {
			return err
		}
		switch st := raffle.Status(r.Status); {
		case st.IsTerminal() || st == raffle.StatusWaitingDeposit:
		case st == raffle.StatusActive:
			return rerrors.ForRaffle(rerrors.ErrCodeConflict, raffleID, "active raffle must run to its draw or cancellation", nil)
		case st == raffle.StatusCancelled:
			open, err := s.store.OpenRefunds(ctx, raffleID)
			if err != nil {
				return err
			}
			if open > 0 {
				return rerrors.ForRaffle(rerrors.ErrCodeConflict, raffleID, "raffle has refunds outstanding", nil)
			}
		default:
			return rerrors.ForRaffle(rerrors.ErrCodeConflict, raffleID, "raffle has a payout in progress", nil)
		}
		return s.store.DeleteRaffle(ctx, raffleID)
	})
}

// ForceActivate activates a raffle without checking its deposit on chain.
func (s *Service) ForceActivate(ctx context.Context, raffleID string) (*store.Raffle, error) {
	var out *store.Raffle
	err := s.withLock(ctx, raffleKey(raffleID), func() error {
		if err := s.store.TransitionStatus(ctx, raffleID, raffle.StatusWaitingDeposit, raffle.StatusActive,
			map[string]any{"activated_at": s.now()}); err != nil {
			return err
		}
		s.logger.Warn().Str("raffle_id", raffleID).Msg("raffle force-activated without deposit verification")
		var err error
		out, err = s.store.GetRaffle(ctx, raffleID)
		return err
	})
	return out, err
}

// VerifyDeposits checks every raffle waiting for a deposit that has a
// signature on file and activates those whose deposit landed.
func (s *Service) VerifyDeposits(ctx context.Context) ([]DepositResult, error) {
	pending, err := s.store.ListAwaitingDeposit(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]DepositResult, 0, len(pending))
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.verifyDeposit(ctx, &pending[i])
		metrics.RecordDeposit(res.Status)
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) verifyDeposit(ctx context.Context, r *store.Raffle) DepositResult {
	sig := *r.DepositTxSignature
	res := DepositResult{ID: r.ID, Signature: sig}
	log := s.logger.With().Str("raffle_id", r.ID).Str("signature", sig).Logger()

	release, ok := s.tryLock(raffleKey(r.ID))
	if !ok {
		res.Status = DepositSkipped
		return res
	}
	defer release()

	check, err := s.verifier.VerifyTransfer(ctx, svm.TransferCheck{
		Signature:        sig,
		ExpectedLamports: r.PrizeLamports,
		ExpectedPayer:    r.CreatorWallet,
		ToleranceBps:     s.opts.DepositToleranceBps,
	})
	if err != nil {
		log.Error().Err(err).Msg("deposit verification failed")
		res.Status = DepositError
		res.Error = rerrors.PublicMessage(err)
		return res
	}
	res.Received = check.Received
	if !check.OK() {
		log.Info().Str("result", string(check.Status)).Uint64("received", check.Received).Msg("deposit not accepted")
		res.Status = string(check.Status)
		return res
	}

	if err := s.store.TransitionStatus(ctx, r.ID, raffle.StatusWaitingDeposit, raffle.StatusActive,
		map[string]any{"activated_at": s.now(), "deposit_verified": true}); err != nil {
		res.Status = DepositError
		res.Error = rerrors.PublicMessage(err)
		return res
	}
	log.Info().Uint64("received", check.Received).Msg("deposit verified, raffle activated")
	res.Status = DepositActivated
	return res
}
