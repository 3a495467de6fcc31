package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/metrics"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
)

// minOperatingLamports covers transaction fees for a batch of payouts.
const minOperatingLamports = 10_000_000

// WalletMonitor periodically records the hot wallet balance and RPC health.
type WalletMonitor struct {
	ctx           context.Context
	log           zerolog.Logger
	chain         Chain
	checkInterval time.Duration

	mu          sync.RWMutex
	lastBalance uint64
	lastCheck   time.Time
	healthy     bool
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewWalletMonitor creates a new wallet monitor
func NewWalletMonitor(ctx context.Context, log zerolog.Logger, chain Chain, checkInterval time.Duration) *WalletMonitor {
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}
	return &WalletMonitor{
		ctx:           ctx,
		log:           log.With().Str("component", "wallet_monitor").Logger(),
		chain:         chain,
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins monitoring
func (wm *WalletMonitor) Start() {
	wm.log.Info().
		Str("hot_wallet", wm.chain.HotWallet().String()).
		Dur("check_interval", wm.checkInterval).
		Msg("Starting wallet monitor")
	go wm.monitorLoop()
}

// Stop stops the monitor
func (wm *WalletMonitor) Stop() {
	wm.stopOnce.Do(func() { close(wm.stopCh) })
}

// Snapshot returns the last observed balance, whether the RPC answered and
// when the check ran.
func (wm *WalletMonitor) Snapshot() (uint64, bool, time.Time) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.lastBalance, wm.healthy, wm.lastCheck
}

func (wm *WalletMonitor) monitorLoop() {
	wm.check()

	ticker := time.NewTicker(wm.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wm.ctx.Done():
			return
		case <-wm.stopCh:
			return
		case <-ticker.C:
			wm.check()
		}
	}
}

func (wm *WalletMonitor) check() {
	ctx, cancel := context.WithTimeout(wm.ctx, 15*time.Second)
	defer cancel()

	healthy := wm.chain.IsHealthy(ctx)
	if !healthy {
		wm.log.Warn().Msg("no Solana RPC endpoint is healthy")
	}

	balance, err := wm.chain.HotWalletBalance(ctx)
	wm.mu.Lock()
	wm.healthy = healthy
	wm.lastCheck = time.Now()
	if err == nil {
		wm.lastBalance = balance
	}
	wm.mu.Unlock()

	if err != nil {
		wm.log.Error().Err(err).Msg("failed to fetch hot wallet balance")
		return
	}
	metrics.SetHotWalletBalance(balance)
	if balance < minOperatingLamports {
		wm.log.Warn().
			Str("balance_sol", raffle.LamportsToSOL(balance)).
			Msg("hot wallet balance is too low to pay transaction fees")
		return
	}
	wm.log.Debug().Str("balance_sol", raffle.LamportsToSOL(balance)).Msg("hot wallet balance")
}
