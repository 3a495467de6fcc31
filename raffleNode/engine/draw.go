package engine

import (
	"context"
	"fmt"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/metrics"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// Draw outcomes.
const (
	DrawDrawn     = "drawn"
	DrawPaid      = "paid"
	DrawCancelled = "cancelled"
	DrawSkipped   = "skipped"
	DrawError     = "error"
)

// DrawResult reports one raffle of a draw.
type DrawResult struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Winner         string `json:"winner,omitempty"`
	WinningTicket  *int   `json:"winningTicket,omitempty"`
	TotalTickets   int    `json:"totalTickets,omitempty"`
	PrizeSignature string `json:"prizeSignature,omitempty"`
	Refunds        int    `json:"refunds,omitempty"`
	Error          string `json:"error,omitempty"`
}

func drawEntries(entries []store.TicketEntry) []raffle.Entry {
	out := make([]raffle.Entry, len(entries))
	for i, e := range entries {
		out[i] = raffle.Entry{Wallet: e.BuyerWallet, Quantity: e.Quantity}
	}
	return out
}

// Draw selects the winner of an active raffle on request, regardless of its
// end time.
func (s *Service) Draw(ctx context.Context, raffleID string) (*DrawResult, error) {
	var out *DrawResult
	err := s.withLock(ctx, raffleKey(raffleID), func() error {
		r, err := s.store.GetRaffle(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Status(r.Status) != raffle.StatusActive {
			return rerrors.ForRaffle(rerrors.ErrCodeValidation, raffleID, "raffle is not in active status", nil)
		}
		entries, err := s.store.ListEntries(ctx, raffleID)
		if err != nil {
			return err
		}
		if raffle.Participants(drawEntries(entries)) < s.opts.Limits.MinParticipants {
			return rerrors.ForRaffle(rerrors.ErrCodeValidation, raffleID,
				fmt.Sprintf("not enough participants to draw (min %d)", s.opts.Limits.MinParticipants), nil)
		}
		out, err = s.drawLocked(ctx, r, entries)
		return err
	})
	return out, err
}

// DrawDue draws every active raffle past its end time. Raffles without
// enough participants are cancelled and their funds queued for refund.
func (s *Service) DrawDue(ctx context.Context) ([]DrawResult, error) {
	due, err := s.store.ListDueForDraw(ctx, s.now())
	if err != nil {
		return nil, err
	}

	results := make([]DrawResult, 0, len(due))
	for i := range due {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.drawDue(ctx, due[i].ID))
	}
	return results, nil
}

func (s *Service) drawDue(ctx context.Context, raffleID string) DrawResult {
	release, ok := s.tryLock(raffleKey(raffleID))
	if !ok {
		return DrawResult{ID: raffleID, Status: DrawSkipped}
	}
	defer release()

	fail := func(err error) DrawResult {
		s.logger.Error().Err(err).Str("raffle_id", raffleID).Msg("automatic draw failed")
		metrics.RecordDraw(DrawError)
		return DrawResult{ID: raffleID, Status: DrawError, Error: rerrors.PublicMessage(err)}
	}

	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return fail(err)
	}
	if raffle.Status(r.Status) != raffle.StatusActive {
		return DrawResult{ID: raffleID, Status: DrawSkipped}
	}
	entries, err := s.store.ListEntries(ctx, raffleID)
	if err != nil {
		return fail(err)
	}

	if raffle.Participants(drawEntries(entries)) < s.opts.Limits.MinParticipants {
		n, err := s.cancelWithRefunds(ctx, r, entries)
		if err != nil {
			return fail(err)
		}
		return DrawResult{ID: raffleID, Status: DrawCancelled, Refunds: n}
	}

	res, err := s.drawLocked(ctx, r, entries)
	if err != nil {
		return fail(err)
	}
	return *res
}

// drawLocked picks the winner and moves the raffle to drawn. With automatic
// prize payout enabled the prize is sent right away; a failed send leaves
// the raffle drawn for the payout job to retry.
func (s *Service) drawLocked(ctx context.Context, r *store.Raffle, entries []store.TicketEntry) (*DrawResult, error) {
	pool := raffle.BuildPool(drawEntries(entries))
	idx, winner, err := raffle.SelectWinner(pool, s.rand)
	if err != nil {
		return nil, err
	}

	if err := s.store.TransitionStatus(ctx, r.ID, raffle.StatusActive, raffle.StatusDrawn, map[string]any{
		"winner_wallet":  winner,
		"winning_ticket": idx,
		"drawn_at":       s.now(),
	}); err != nil {
		return nil, err
	}
	metrics.RecordDraw(DrawDrawn)
	s.logger.Info().
		Str("raffle_id", r.ID).
		Str("winner", winner).
		Int("winning_ticket", idx).
		Int("total_tickets", len(pool)).
		Msg("raffle drawn")

	res := &DrawResult{
		ID:            r.ID,
		Status:        DrawDrawn,
		Winner:        winner,
		WinningTicket: &idx,
		TotalTickets:  len(pool),
	}
	if !s.opts.AutoPrizePayout {
		return res, nil
	}

	p, err := s.payouts.Pay(ctx, r.ID, rafflestore.PayoutKindPrize, winner, r.PrizeLamports)
	if err != nil {
		s.logger.Warn().Err(err).Str("raffle_id", r.ID).Msg("prize payout deferred")
		res.Error = rerrors.PublicMessage(err)
		return res, nil
	}
	res.Status = DrawPaid
	res.PrizeSignature = p.TxSignature
	return res, nil
}

// cancelWithRefunds cancels r and queues refunds: every buyer gets back what
// they paid and the creator gets the prize deposit back when one was
// verified on chain. A force-activated raffle has no deposit to return.
func (s *Service) cancelWithRefunds(ctx context.Context, r *store.Raffle, entries []store.TicketEntry) (int, error) {
	refunds := make(map[string]uint64)
	for _, e := range entries {
		if e.AmountPaidLamports > 0 {
			refunds[e.BuyerWallet] += e.AmountPaidLamports
		}
	}
	if r.DepositVerified {
		refunds[r.CreatorWallet] += r.PrizeLamports
	}

	if err := s.store.CancelWithRefunds(ctx, r.ID, raffle.StatusActive, refunds, s.now()); err != nil {
		return 0, err
	}
	metrics.RecordDraw(DrawCancelled)

	n := 0
	for _, v := range refunds {
		if v > 0 {
			n++
		}
	}
	s.logger.Info().
		Str("raffle_id", r.ID).
		Int("participants", raffle.Participants(drawEntries(entries))).
		Int("refunds", n).
		Msg("raffle cancelled, not enough participants")
	return n, nil
}
