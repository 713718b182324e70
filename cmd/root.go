package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "auction-relayer",
	Short: "Parlay auction relayer",
	Long: `Relayer for parlay auctions: a maker broadcasts a signed multi-leg
trade request, takers respond with signed counterparty bids, and the relayer
matches the best bid at the deadline and prepares the dual-signed settlement
call for the on-chain mint.

The serve command runs the relayer itself; start-auction, bid and watch are
maker/taker clients speaking the relayer's WebSocket protocol.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env for local development.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
