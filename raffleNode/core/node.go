// Package core wires the raffle node together: database, Solana client,
// locks, the raffle engine, background jobs and the HTTP API.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/api"
	"github.com/solraffle/raffle-node/raffleNode/authz"
	"github.com/solraffle/raffle-node/raffleNode/cache"
	"github.com/solraffle/raffle-node/raffleNode/chains/svm"
	"github.com/solraffle/raffle-node/raffleNode/config"
	"github.com/solraffle/raffle-node/raffleNode/cron"
	"github.com/solraffle/raffle-node/raffleNode/db"
	"github.com/solraffle/raffle-node/raffleNode/engine"
	"github.com/solraffle/raffle-node/raffleNode/keys"
	"github.com/solraffle/raffle-node/raffleNode/lock"
	"github.com/solraffle/raffle-node/raffleNode/payout"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
)

const shutdownTimeout = 10 * time.Second

// RaffleNode owns every long-lived component of the node.
type RaffleNode struct {
	ctx context.Context
	log zerolog.Logger
	cfg *config.Config

	db          *db.DB
	chain       Chain
	locker      lock.Locker
	closeLocker func() error

	store     *rafflestore.Store
	payouts   *payout.Executor
	engine    *engine.Service
	auth      *authz.Verifier
	cache     *cache.Cache
	scheduler *cron.Scheduler
	server    *api.Server
	monitor   *WalletMonitor
}

// NewRaffleNode opens the database, loads the hot wallet, connects to
// Solana and the configured locker, and wires the node.
func NewRaffleNode(ctx context.Context, log zerolog.Logger, cfg *config.Config) (*RaffleNode, error) {
	database, err := OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	key, err := keys.LoadHotWallet(HotWalletKeyFile(cfg), log)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load hot wallet: %w", err)
	}

	chain, err := svm.NewClient(ctx, cfg.SolanaRPCURLs, key, log)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to connect to solana: %w", err)
	}

	locker, closeLocker, err := OpenLocker(ctx, cfg, log)
	if err != nil {
		chain.Close()
		database.Close()
		return nil, err
	}

	return NewRaffleNodeWith(ctx, log, cfg, database, chain, locker, closeLocker)
}

// NewRaffleNodeWith wires the node from already opened dependencies.
func NewRaffleNodeWith(
	ctx context.Context,
	log zerolog.Logger,
	cfg *config.Config,
	database *db.DB,
	chain Chain,
	locker lock.Locker,
	closeLocker func() error,
) (*RaffleNode, error) {
	if closeLocker == nil {
		closeLocker = func() error { return nil }
	}

	n := &RaffleNode{
		ctx:         ctx,
		log:         log,
		cfg:         cfg,
		db:          database,
		chain:       chain,
		locker:      locker,
		closeLocker: closeLocker,
		cache:       cache.New(log),
	}

	n.store = rafflestore.NewStore(database.Client(), log)
	n.payouts = payout.NewExecutor(n.store, chain, cfg.TransferConfirmTimeout(), log)
	n.engine = engine.NewService(n.store, chain, n.payouts, locker, engine.OptionsFromConfig(cfg), log)
	n.auth = authz.NewVerifier(cfg.AdminWallets, cfg.OwnerWallet, n.engine, cfg.SignatureMaxSkew(), log)

	n.scheduler = cron.NewScheduler(locker, cfg.JobTimeout(), log)
	if err := cron.RegisterRaffleJobs(n.scheduler, cfg, n.engine, n.payouts, n.cache); err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	n.server = api.NewServer(api.Deps{
		Engine:     n.engine,
		Auth:       n.auth,
		Reconciler: n.payouts,
		Cache:      n.cache,
	}, api.Options{
		Port:           cfg.APIPort,
		CronSecret:     cfg.CronSecret,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
	}, log)

	n.monitor = NewWalletMonitor(ctx, log, chain, time.Minute)

	if len(cfg.AdminWallets) == 0 && cfg.OwnerWallet == "" {
		log.Warn().Msg("no admin or owner wallet configured, privileged routes will reject every request")
	}
	if cfg.CronSecret == "" {
		log.Warn().Msg("cron_secret is empty, /auto routes are open to anyone")
	}
	return n, nil
}

// Engine exposes the raffle engine.
func (n *RaffleNode) Engine() *engine.Service {
	return n.engine
}

// Start runs the node until its context is cancelled.
func (n *RaffleNode) Start() error {
	n.log.Info().
		Str("hot_wallet", n.chain.HotWallet().String()).
		Msg("🚀 Starting raffle node...")

	// Payouts signed before a crash are settled or failed before any job
	// can sign a replacement.
	if res, err := n.payouts.Reconcile(n.ctx); err != nil {
		n.log.Error().Err(err).Msg("startup payout reconciliation failed")
	} else if res.Checked > 0 {
		n.log.Info().
			Int("checked", res.Checked).
			Int("confirmed", res.Confirmed).
			Int("failed", res.Failed).
			Int("in_flight", res.InFlight).
			Msg("startup payout reconciliation finished")
	}

	if _, _, err := n.scheduler.RunNow(n.ctx, cron.JobStats); err != nil {
		n.log.Warn().Err(err).Msg("initial stats refresh failed")
	}

	if err := n.server.Start(); err != nil {
		n.shutdown()
		return fmt.Errorf("failed to start api server: %w", err)
	}
	n.scheduler.Start(n.ctx)
	n.monitor.Start()

	n.log.Info().Msg("✅ Initialization complete. Entering main loop...")

	<-n.ctx.Done()

	n.log.Info().Msg("🛑 Shutting down raffle node...")
	return n.shutdown()
}

func (n *RaffleNode) shutdown() error {
	n.monitor.Stop()
	n.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := n.server.Stop(ctx); err != nil {
		n.log.Error().Err(err).Msg("failed to stop api server")
	}

	n.chain.Close()
	if err := n.closeLocker(); err != nil {
		n.log.Error().Err(err).Msg("failed to close locker")
	}
	return n.db.Close()
}
