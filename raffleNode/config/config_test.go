package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solraffle/raffle-node/raffleNode/constant"
)

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "Valid config gets defaults",
			config: &Config{
				LogLevel:  1,
				LogFormat: "json",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.APIPort)
				assert.Equal(t, DatabaseDriverSQLite, cfg.DatabaseDriver)
				assert.Equal(t, uint64(1_000_000), cfg.MinTicketPriceLamports)
				assert.Equal(t, uint64(10_000*constant.LamportsPerSOL), cfg.MaxPrizeLamports)
				assert.Equal(t, uint32(10_000), cfg.MaxTickets)
				assert.Equal(t, 168, cfg.MaxDurationHours)
				assert.Equal(t, uint32(100), cfg.MaxTicketsPerWallet)
				assert.Equal(t, 2, cfg.MinParticipants)
				assert.Equal(t, 86400, cfg.PayoutQuarantineSeconds)
				assert.Equal(t, "@every 1m", cfg.DrawJobSpec)
				assert.NotEmpty(t, cfg.SolanaRPCURLs)
			},
		},
		{
			name: "Custom values are kept",
			config: &Config{
				LogLevel:       0,
				LogFormat:      "console",
				APIPort:        9000,
				PlatformFeeBps: 500,
				MaxTickets:     50,
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.APIPort)
				assert.Equal(t, uint16(500), cfg.PlatformFeeBps)
				assert.Equal(t, uint32(50), cfg.MaxTickets)
			},
		},
		{
			name:        "Invalid log level (negative)",
			config:      &Config{LogLevel: -1, LogFormat: "json"},
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name:        "Invalid log level (too high)",
			config:      &Config{LogLevel: 6, LogFormat: "json"},
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name:        "Invalid log format",
			config:      &Config{LogLevel: 1, LogFormat: "xml"},
			expectError: true,
			errorMsg:    "log format must be 'json' or 'console'",
		},
		{
			name:        "Postgres without DSN",
			config:      &Config{LogLevel: 1, LogFormat: "json", DatabaseDriver: DatabaseDriverPostgres},
			expectError: true,
			errorMsg:    "database dsn is required",
		},
		{
			name:        "Unknown database driver",
			config:      &Config{LogLevel: 1, LogFormat: "json", DatabaseDriver: "mysql"},
			expectError: true,
			errorMsg:    "database driver must be",
		},
		{
			name:        "Fee above 100%",
			config:      &Config{LogLevel: 1, LogFormat: "json", PlatformFeeBps: 10_001},
			expectError: true,
			errorMsg:    "platform fee must not exceed 10000 bps",
		},
		{
			name: "Inverted ticket bounds",
			config: &Config{
				LogLevel:   1,
				LogFormat:  "json",
				MinTickets: 500,
				MaxTickets: 10,
			},
			expectError: true,
			errorMsg:    "min tickets exceeds max tickets",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConfig(tc.config)
			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorMsg)
				return
			}
			require.NoError(t, err)
			if tc.validate != nil {
				tc.validate(t, tc.config)
			}
		})
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, uint16(300), cfg.PlatformFeeBps)
	assert.Equal(t, uint16(10), cfg.DepositToleranceBps)
	assert.True(t, cfg.AutoPrizePayout)
	require.NoError(t, validateConfig(cfg))
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("round trip keeps values", func(t *testing.T) {
		cfg, err := LoadDefaultConfig()
		require.NoError(t, err)
		cfg.APIPort = 9191
		cfg.AdminWallets = []string{"Admin1111111111111111111111111111111111111"}

		require.NoError(t, Save(cfg, tempDir))

		info, err := os.Stat(filepath.Join(tempDir, constant.ConfigSubdir, constant.ConfigFileName))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		loaded, err := Load(tempDir)
		require.NoError(t, err)
		assert.Equal(t, 9191, loaded.APIPort)
		assert.Equal(t, cfg.AdminWallets, loaded.AdminWallets)
		assert.Equal(t, tempDir, loaded.NodeHome)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("RAFFLED_API_PORT", "7070")
		t.Setenv("RAFFLED_CRON_SECRET", "s3cret")
		t.Setenv("RAFFLED_SOLANA_RPC_URLS", "http://a:8899,http://b:8899")

		loaded, err := Load(tempDir)
		require.NoError(t, err)
		assert.Equal(t, 7070, loaded.APIPort)
		assert.Equal(t, "s3cret", loaded.CronSecret)
		assert.Equal(t, []string{"http://a:8899", "http://b:8899"}, loaded.SolanaRPCURLs)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := Load(filepath.Join(tempDir, "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid config is not saved", func(t *testing.T) {
		err := Save(&Config{LogLevel: 9, LogFormat: "json"}, t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})
}
