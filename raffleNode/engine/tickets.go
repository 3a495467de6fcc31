package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/solraffle/raffle-node/raffleNode/chains/svm"
	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/metrics"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// BuyRequest is a ticket purchase. Paid raffles need the signature of the
// payment transfer to the hot wallet.
type BuyRequest struct {
	RaffleID    string
	Wallet      string
	Quantity    uint32
	TxSignature string
}

// BuyTicket validates a purchase, proves its payment on chain and records
// the entry.
func (s *Service) BuyTicket(ctx context.Context, req BuyRequest) (*store.TicketEntry, error) {
	if err := raffle.ValidWallet(req.Wallet); err != nil {
		return nil, err
	}
	if !s.limiter.allow(req.Wallet, s.now()) {
		return nil, rerrors.New(rerrors.ErrCodeRateLimited, "too many purchases, please wait before buying again", nil)
	}

	// Purchases share the raffle lock with draws, so an entry is either in
	// the draw's pool or rejected because the raffle is no longer active.
	var entry *store.TicketEntry
	err := s.withLock(ctx, raffleKey(req.RaffleID), func() error {
		r, err := s.store.GetRaffle(ctx, req.RaffleID)
		if err != nil {
			return err
		}
		held, err := s.store.WalletTicketCount(ctx, req.RaffleID, req.Wallet)
		if err != nil {
			return err
		}
		now := s.now()
		snap := raffle.Snapshot{
			Status:      raffle.Status(r.Status),
			IsFree:      r.IsFree,
			MaxTickets:  r.MaxTickets,
			TicketsSold: r.TicketsSold,
			EndTime:     r.EndTime,
		}
		if err := raffle.ValidatePurchase(snap, req.Quantity, held, now, s.opts.Limits); err != nil {
			return err
		}

		e := &store.TicketEntry{
			RaffleID:    r.ID,
			BuyerWallet: req.Wallet,
			Quantity:    req.Quantity,
			IsFree:      r.IsFree,
			Verified:    true,
		}
		if !r.IsFree {
			cost, err := s.verifyPayment(ctx, r, req)
			if err != nil {
				return err
			}
			sig := req.TxSignature
			e.TxSignature = &sig
			e.AmountPaidLamports = cost
		}

		if err := s.store.AddEntry(ctx, e, now); err != nil {
			return err
		}
		metrics.RecordTickets(r.IsFree, req.Quantity)
		entry = e
		return nil
	})
	return entry, err
}

func (s *Service) verifyPayment(ctx context.Context, r *store.Raffle, req BuyRequest) (uint64, error) {
	if req.TxSignature == "" {
		return 0, rerrors.ForRaffle(rerrors.ErrCodeValidation, r.ID, "transaction signature is required for paid raffles", nil)
	}
	if err := validSignature(req.TxSignature); err != nil {
		return 0, err
	}
	cost, err := raffle.TicketCost(r.TicketPriceLamports, req.Quantity)
	if err != nil {
		return 0, err
	}
	if err := s.ensureUnused(ctx, req.TxSignature); err != nil {
		return 0, err
	}

	res, err := s.verifier.VerifyTransfer(ctx, svm.TransferCheck{
		Signature:        req.TxSignature,
		ExpectedLamports: cost,
		ExpectedPayer:    req.Wallet,
		ToleranceBps:     s.opts.DepositToleranceBps,
	})
	if err != nil {
		return 0, err
	}
	if !res.OK() {
		s.logger.Warn().
			Str("raffle_id", r.ID).
			Str("wallet", req.Wallet).
			Str("signature", req.TxSignature).
			Str("result", string(res.Status)).
			Uint64("received", res.Received).
			Uint64("expected", cost).
			Msg("ticket payment rejected")
		return 0, rerrors.ForRaffle(rerrors.ErrCodeValidation, r.ID,
			fmt.Sprintf("payment verification failed: %s", res.Status), nil)
	}
	return cost, nil
}

// walletLimiter hands out one token bucket per wallet. Buckets idle for
// longer than it takes to refill completely are dropped.
type walletLimiter struct {
	mu        sync.Mutex
	every     time.Duration
	burst     int
	buckets   map[string]*walletBucket
	lastSweep time.Time
}

type walletBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newWalletLimiter(every time.Duration, burst int) *walletLimiter {
	return &walletLimiter{
		every:   every,
		burst:   burst,
		buckets: make(map[string]*walletBucket),
	}
}

func (l *walletLimiter) allow(wallet string, now time.Time) bool {
	if l.every <= 0 || l.burst <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	idle := l.every * time.Duration(l.burst)
	if now.Sub(l.lastSweep) > idle {
		for w, b := range l.buckets {
			if now.Sub(b.seen) > idle {
				delete(l.buckets, w)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[wallet]
	if !ok {
		b = &walletBucket{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.buckets[wallet] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}
