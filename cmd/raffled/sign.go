package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/solraffle/raffle-node/raffleNode/authz"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
)

// signedEnvelope matches the fields privileged API requests carry.
type signedEnvelope struct {
	Wallet    string `json:"wallet"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

func signCmd() *cobra.Command {
	var (
		keyFile string
		action  string
		subject string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a privileged API request",
		Long: `
Produce the wallet/timestamp/signature fields of a privileged request using an
admin, owner or creator keypair. The signature is valid for a few minutes and
can be used once.

Actions: create, deposit, delete, activate, draw, payout, payout-winner, buy,
approve-creator, revoke-creator, rename-creator. The subject is the raffle id, empty for
create, and the creator wallet for the creator actions.

Examples:
  raffled sign --key ~/.config/solana/admin.json --action draw --subject <raffle-id>
  raffled sign --key ~/.config/solana/admin.json --action approve-creator --subject <wallet>
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyFile == "" || action == "" {
				return fmt.Errorf("--key and --action are required")
			}
			key, err := solana.PrivateKeyFromSolanaKeygenFile(filepath.Clean(keyFile))
			if err != nil {
				return fmt.Errorf("failed to read key file: %w", err)
			}

			ts := time.Now().Unix()
			sig, err := authz.Sign(key, action, subject, ts)
			if err != nil {
				return fmt.Errorf("failed to sign: %w", err)
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(signedEnvelope{
				Wallet:    key.PublicKey().String(),
				Timestamp: ts,
				Signature: sig,
			})
		},
	}

	cmd.Flags().StringVar(&keyFile, "key", "", "solana-keygen keypair file of the signing wallet")
	cmd.Flags().StringVar(&action, "action", "", "Action to authorize")
	cmd.Flags().StringVar(&subject, "subject", "", "Raffle id or creator wallet the action applies to")
	return cmd
}

// lamportsCmd converts SOL amounts for the *Lamports fields of request bodies.
func lamportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lamports <sol>",
		Short: "Convert a SOL amount to lamports",
		Example: `  raffled lamports 1.5
  raffled lamports 0.000000001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := raffle.SOLToLamports(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}
