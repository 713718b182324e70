package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parlaymkt/auction-relayer/internal/app"
	"github.com/parlaymkt/auction-relayer/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auction relayer",
	Long: `Starts the relayer, which will:
1. Accept maker and taker WebSocket connections on /ws
2. Validate signed trade requests against the settlement contract's nonces
3. Collect signed bids per auction and broadcast them to subscribers
4. Match the best eligible bid at each auction deadline
5. Prepare dual-signed mint calldata for matched auctions

Configuration is environment-driven; see .env.example.`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
