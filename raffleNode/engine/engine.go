// Package engine runs the raffle lifecycle: creation, deposit activation,
// ticket sales, draws, cancellations with refunds, and payouts. Every
// mutation of a raffle happens under a per-raffle lock and ends in a
// compare-and-set status change in the store.
package engine

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/chains/svm"
	"github.com/solraffle/raffle-node/raffleNode/config"
	"github.com/solraffle/raffle-node/raffleNode/lock"
	"github.com/solraffle/raffle-node/raffleNode/payout"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
)

//go:generate mockgen -destination=../mocks/mock_verifier.go -package=mocks . TransferVerifier

// TransferVerifier proves incoming transfers to the hot wallet.
type TransferVerifier interface {
	VerifyTransfer(ctx context.Context, c svm.TransferCheck) (svm.TransferResult, error)
}

// Options are the economic and operational knobs of the engine.
type Options struct {
	Limits              raffle.Limits
	PlatformFeeBps      uint16
	DepositToleranceBps uint16
	PayoutQuarantine    time.Duration
	AutoPrizePayout     bool
	LockTTL             time.Duration
	LockWait            time.Duration
	PurchaseInterval    time.Duration
	PurchaseBurst       int
}

// OptionsFromConfig maps a validated node config onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Limits: raffle.Limits{
			MinTicketPrice:       cfg.MinTicketPriceLamports,
			MaxTicketPrice:       cfg.MaxTicketPriceLamports,
			MinPrize:             cfg.MinPrizeLamports,
			MaxPrize:             cfg.MaxPrizeLamports,
			MinTickets:           cfg.MinTickets,
			MaxTickets:           cfg.MaxTickets,
			MinDurationHours:     cfg.MinDurationHours,
			MaxDurationHours:     cfg.MaxDurationHours,
			MaxTicketsPerWallet:  cfg.MaxTicketsPerWallet,
			FreeTicketsPerWallet: 1,
			MinParticipants:      cfg.MinParticipants,
		},
		PlatformFeeBps:      cfg.PlatformFeeBps,
		DepositToleranceBps: cfg.DepositToleranceBps,
		PayoutQuarantine:    cfg.PayoutQuarantine(),
		AutoPrizePayout:     cfg.AutoPrizePayout,
		LockTTL:             cfg.LockTTL(),
		LockWait:            5 * time.Second,
		PurchaseInterval:    cfg.PurchaseInterval(),
		PurchaseBurst:       cfg.PurchaseBurst,
	}
}

// Service implements the raffle operations exposed over HTTP and run by
// the background jobs.
type Service struct {
	store    *rafflestore.Store
	verifier TransferVerifier
	payouts  *payout.Executor
	locker   lock.Locker
	opts     Options
	limiter  *walletLimiter
	now      func() time.Time
	rand     io.Reader
	logger   zerolog.Logger
}

// NewService wires the engine.
func NewService(
	s *rafflestore.Store,
	verifier TransferVerifier,
	payouts *payout.Executor,
	locker lock.Locker,
	opts Options,
	logger zerolog.Logger,
) *Service {
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.Limits.MinParticipants < 2 {
		opts.Limits.MinParticipants = 2
	}
	return &Service{
		store:    s,
		verifier: verifier,
		payouts:  payouts,
		locker:   locker,
		opts:     opts,
		limiter:  newWalletLimiter(opts.PurchaseInterval, opts.PurchaseBurst),
		now:      func() time.Time { return time.Now().UTC() },
		rand:     rand.Reader,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Options returns the options the service runs with.
func (s *Service) Options() Options {
	return s.opts
}

// withLock runs fn while holding key, waiting at most LockWait for it.
func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	wctx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	release, err := s.locker.Acquire(wctx, key, s.opts.LockTTL)
	cancel()
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// tryLock is used by batch jobs: a raffle somebody else is working on is
// skipped and picked up on the next run.
func (s *Service) tryLock(key string) (func(), bool) {
	return lock.TryAcquire(s.locker, key, s.opts.LockTTL)
}

func raffleKey(id string) string {
	return "raffle:" + id
}
