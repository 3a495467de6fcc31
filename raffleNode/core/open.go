package core

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/config"
	"github.com/solraffle/raffle-node/raffleNode/constant"
	"github.com/solraffle/raffle-node/raffleNode/db"
	"github.com/solraffle/raffle-node/raffleNode/lock"
)

// OpenDatabase opens the configured database and migrates the schema.
func OpenDatabase(cfg *config.Config) (*db.DB, error) {
	switch cfg.DatabaseDriver {
	case config.DatabaseDriverPostgres:
		return db.OpenPostgres(cfg.DatabaseDSN, true)
	default:
		dir := cfg.DatabaseDir
		if dir == "" {
			dir = filepath.Join(cfg.NodeHome, constant.DatabasesSubdir)
		}
		return db.OpenFileDB(dir, constant.DatabaseFile, true)
	}
}

// OpenLocker returns a Redis locker when redis_url is set and an in-process
// one otherwise. The returned close func is never nil.
func OpenLocker(ctx context.Context, cfg *config.Config, log zerolog.Logger) (lock.Locker, func() error, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("using in-process locks, run a single replica")
		return lock.NewLocal(), func() error { return nil }, nil
	}
	r, err := lock.NewRedis(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Msg("using redis locks")
	return r, r.Close, nil
}

// HotWalletKeyFile resolves the key file path, defaulting to
// <home>/keys/hot_wallet.json.
func HotWalletKeyFile(cfg *config.Config) string {
	if cfg.HotWalletKeyFile != "" {
		return cfg.HotWalletKeyFile
	}
	return filepath.Join(cfg.NodeHome, constant.KeysSubdir, constant.HotWalletKeyFile)
}
