package main

import (
	"github.com/spf13/cobra"

	"github.com/solraffle/raffle-node/raffleNode/constant"
)

var homeFlag string

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "raffled",
		Short:         "Solana raffle node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", constant.DefaultNodeHome, "Node home directory")

	InitRootCmd(rootCmd) // add subcommands like `start` and `version`

	return rootCmd
}
