package cron

import (
	"context"

	"github.com/solraffle/raffle-node/raffleNode/cache"
	"github.com/solraffle/raffle-node/raffleNode/config"
	"github.com/solraffle/raffle-node/raffleNode/engine"
	"github.com/solraffle/raffle-node/raffleNode/payout"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
)

// Job names.
const (
	JobDeposits  = "deposits"
	JobDraws     = "draws"
	JobPayouts   = "payouts"
	JobRefunds   = "refunds"
	JobReconcile = "reconcile"
	JobStats     = "stats"
)

// Lifecycle is the part of the engine driven by jobs.
type Lifecycle interface {
	VerifyDeposits(ctx context.Context) ([]engine.DepositResult, error)
	DrawDue(ctx context.Context) ([]engine.DrawResult, error)
	PayoutDue(ctx context.Context) ([]engine.PayoutResult, error)
	ProcessRefunds(ctx context.Context) ([]engine.PayoutResult, error)
	Stats(ctx context.Context) (rafflestore.PlatformStats, error)
}

// Reconciler resolves payouts left in flight.
type Reconciler interface {
	Reconcile(ctx context.Context) (payout.ReconcileResult, error)
}

// RegisterRaffleJobs registers every background job with the schedules from
// cfg. Jobs with an empty spec can still be run through RunNow.
func RegisterRaffleJobs(s *Scheduler, cfg *config.Config, lc Lifecycle, rec Reconciler, c *cache.Cache) error {
	jobs := []struct {
		name string
		spec string
		fn   RunFunc
	}{
		{JobDeposits, cfg.DepositJobSpec, func(ctx context.Context) (int, error) {
			res, err := lc.VerifyDeposits(ctx)
			return len(res), err
		}},
		{JobDraws, cfg.DrawJobSpec, func(ctx context.Context) (int, error) {
			res, err := lc.DrawDue(ctx)
			return len(res), err
		}},
		{JobPayouts, cfg.PayoutJobSpec, func(ctx context.Context) (int, error) {
			res, err := lc.PayoutDue(ctx)
			return len(res), err
		}},
		{JobRefunds, cfg.RefundJobSpec, func(ctx context.Context) (int, error) {
			res, err := lc.ProcessRefunds(ctx)
			return len(res), err
		}},
		{JobReconcile, cfg.ReconcileJobSpec, func(ctx context.Context) (int, error) {
			res, err := rec.Reconcile(ctx)
			return res.Checked, err
		}},
		{JobStats, cfg.StatsJobSpec, func(ctx context.Context) (int, error) {
			stats, err := lc.Stats(ctx)
			if err != nil {
				return 0, err
			}
			c.UpdateStats(stats)
			return 0, nil
		}},
	}

	for _, j := range jobs {
		spec := j.spec
		if !cfg.JobsEnabled {
			spec = ""
		}
		if err := s.Register(j.name, spec, j.fn); err != nil {
			return err
		}
	}
	return nil
}
