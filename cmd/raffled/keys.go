package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solraffle/raffle-node/raffleNode/config"
	"github.com/solraffle/raffle-node/raffleNode/core"
	"github.com/solraffle/raffle-node/raffleNode/keys"
)

// keysCmd returns the keys command with all subcommands
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the hot wallet key",
		Long: `
The hot wallet receives ticket payments and prize deposits and pays out
prizes, creator revenue and refunds.

Available Commands:
  show      Show the hot wallet public key
  generate  Create a new hot wallet key file
`,
	}

	cmd.AddCommand(keysShowCmd())
	cmd.AddCommand(keysGenerateCmd())
	return cmd
}

// hotWalletFile returns the configured key file, or the default location
// when no config has been written yet.
func hotWalletFile() string {
	cfg, err := config.Load(homeFlag)
	if err != nil {
		log.Warn().Err(err).Msg("Config not found, using default key location")
		cfg = config.Config{NodeHome: homeFlag}
	}
	return core.HotWalletKeyFile(&cfg)
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the hot wallet public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keys.LoadHotWallet(hotWalletFile(), log.Logger)
			if err != nil {
				return err
			}
			fmt.Println(key.PublicKey().String())
			return nil
		},
	}
}

func keysGenerateCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create a new hot wallet key file",
		Long: `
Create a new keypair in solana-keygen format with owner-only permissions.
An existing file is never overwritten.

Examples:
  raffled keys generate
  raffled keys generate --out /secure/raffled/hot_wallet.json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = hotWalletFile()
			}
			pub, err := keys.GenerateKeyFile(filepath.Clean(path), log.Logger)
			if err != nil {
				return err
			}
			fmt.Printf("Key written to %s\n", path)
			fmt.Printf("Public key: %s\n", pub)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Destination file (default: configured hot wallet key file)")
	return cmd
}
