package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solraffle/raffle-node/raffleNode/config"
	"github.com/solraffle/raffle-node/raffleNode/constant"
	"github.com/solraffle/raffle-node/raffleNode/core"
	"github.com/solraffle/raffle-node/raffleNode/keys"
	"github.com/solraffle/raffle-node/raffleNode/logger"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(lamportsCmd())
	rootCmd.AddCommand(queryCmd())
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(homeFlag)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w (run `raffled init` first)", err)
	}
	return cfg, nil
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the raffle node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			node, err := core.NewRaffleNode(ctx, log, &cfg)
			if err != nil {
				return err
			}
			return node.Start()
		},
	}
}

func initCmd() *cobra.Command {
	var noKey bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config and create a hot wallet key",
		Long: `
Writes <home>/config/raffled_config.json with default values and, unless
--no-key is given, a new hot wallet keypair at <home>/keys/hot_wallet.json.
Existing files are left untouched.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := filepath.Join(homeFlag, constant.ConfigSubdir, constant.ConfigFileName)
			if _, err := os.Stat(configFile); err == nil {
				log.Info().Str("path", configFile).Msg("Config already exists, skipping")
			} else {
				cfg, err := config.LoadDefaultConfig()
				if err != nil {
					return err
				}
				cfg.NodeHome = homeFlag
				if err := config.Save(cfg, homeFlag); err != nil {
					return fmt.Errorf("failed to save config: %w", err)
				}
				fmt.Printf("Config written to %s\n", configFile)
			}

			if noKey {
				return nil
			}
			keyFile := filepath.Join(homeFlag, constant.KeysSubdir, constant.HotWalletKeyFile)
			if _, err := os.Stat(keyFile); err == nil {
				log.Info().Str("path", keyFile).Msg("Hot wallet key already exists, skipping")
				return nil
			}
			pub, err := keys.GenerateKeyFile(keyFile, log.Logger)
			if err != nil {
				return err
			}
			fmt.Printf("Hot wallet: %s\n", pub)
			fmt.Println("Fund this address with SOL before activating raffles.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noKey, "no-key", false, "Do not create a hot wallet key")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print raffled version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Name:       %s\n", "raffled")
			fmt.Printf("Version:    %s\n", Version)
			fmt.Printf("Commit:     %s\n", Commit)
		},
	}
}
