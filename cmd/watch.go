package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/parlaymkt/auction-relayer/pkg/config"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchCmd = &cobra.Command{
	Use:   "watch [auction-id]",
	Short: "Watch auction activity on the relayer",
	Long: `Connects to the relayer and prints auction activity. With an
auction id it follows that auction's bid feed until it closes; without one it
prints every auction.started broadcast as new auctions open.

Example:
  auction-relayer watch
  auction-relayer watch 6f1b... --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("url", "ws://localhost:8080/ws", "Relayer WebSocket URL")
	watchCmd.Flags().BoolP("json", "j", false, "Output raw JSON messages")
}

func runWatch(cmd *cobra.Command, args []string) error {
	_, err := config.LoadFromEnv()
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

	url, _ := cmd.Flags().GetString("url")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client := newRelayerClient(url, logger)
	if err := client.Start(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	var auctionID string
	if len(args) == 1 {
		auctionID = args[0]
		if err := client.Subscribe(auctionID); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		fmt.Printf("Watching auction %s...\n\n", auctionID)
	} else {
		fmt.Println("Watching for new auctions...")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			return nil

		case env, ok := <-client.Messages():
			if !ok {
				return fmt.Errorf("connection closed")
			}

			if jsonOutput {
				raw, _ := json.MarshalIndent(env, "", "  ")
				fmt.Println(string(raw))
				continue
			}

			switch env.Type {
			case types.MsgStarted:
				var started types.StartedPayload
				if err := json.Unmarshal(env.Payload, &started); err != nil {
					continue
				}
				fmt.Printf("auction %s opened: maker %s wager %s\n",
					started.AuctionID, started.Taker, started.Wager)

			case types.MsgBids:
				var bids types.BidsPayload
				if err := json.Unmarshal(env.Payload, &bids); err != nil {
					continue
				}

				printBids(&bids)

				if auctionID != "" && bids.State != "open" {
					fmt.Printf("\nAuction %s: %s\n", bids.AuctionID, bids.State)
					return nil
				}

			case types.MsgError:
				var perr types.ErrorPayload
				if err := json.Unmarshal(env.Payload, &perr); err != nil {
					continue
				}
				fmt.Printf("error: %s: %s\n", perr.Code, perr.Message)
			}
		}
	}
}
