package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
	"github.com/parlaymkt/auction-relayer/pkg/config"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var startAuctionCmd = &cobra.Command{
	Use:   "start-auction",
	Short: "Open a parlay auction as the maker",
	Long: `Signs a trade request with the key in MAKER_PRIVATE_KEY, broadcasts
it to the relayer and then follows the auction's bid feed until it reaches a
terminal state.

Example:
  auction-relayer start-auction \
    --wager 250000000 \
    --legs 0xabc...:yes,0xdef...:no \
    --resolver 0x1234... \
    --nonce 3`,
	RunE: runStartAuction,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(startAuctionCmd)
	startAuctionCmd.Flags().String("url", "ws://localhost:8080/ws", "Relayer WebSocket URL")
	startAuctionCmd.Flags().String("wager", "", "Maker wager in base units (required)")
	startAuctionCmd.Flags().String("legs", "", "Comma-separated legs: <marketId>:<yes|no> (required)")
	startAuctionCmd.Flags().String("resolver", "", "Resolver contract address (required)")
	startAuctionCmd.Flags().Uint64("nonce", 0, "Maker nonce at the settlement contract")
	startAuctionCmd.Flags().Bool("unsigned", false, "Send without an attestation (relayer must allow unsigned)")
	_ = startAuctionCmd.MarkFlagRequired("wager")
	_ = startAuctionCmd.MarkFlagRequired("legs")
	_ = startAuctionCmd.MarkFlagRequired("resolver")
}

func runStartAuction(cmd *cobra.Command, args []string) error {
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

	url, _ := cmd.Flags().GetString("url")
	wagerStr, _ := cmd.Flags().GetString("wager")
	legsSpec, _ := cmd.Flags().GetString("legs")
	resolver, _ := cmd.Flags().GetString("resolver")
	nonce, _ := cmd.Flags().GetUint64("nonce")
	unsigned, _ := cmd.Flags().GetBool("unsigned")

	wager, err := parseWager(wagerStr)
	if err != nil {
		return err
	}

	legs, err := parseLegs(legsSpec)
	if err != nil {
		return err
	}

	key, err := loadKey("MAKER_PRIVATE_KEY")
	if err != nil {
		return err
	}

	resolverAddr, err := parseAddress(resolver)
	if err != nil {
		return err
	}

	intent := &auction.MakerIntent{
		Maker:    crypto.PubkeyToAddress(key.PublicKey),
		Wager:    wager,
		Resolver: resolverAddr,
		Legs:     legs,
		Nonce:    nonce,
		Kind:     auction.IntentUnattested,
	}

	payload := types.StartPayload{
		Taker:             intent.Maker.Hex(),
		Wager:             intent.Wager.String(),
		Resolver:          intent.Resolver.Hex(),
		PredictedOutcomes: hexutil.Encode(codec.EncodeLegs(intent.Legs)),
		TakerNonce:        intent.Nonce,
	}

	if !unsigned {
		intent.Kind = auction.IntentAttested
		intent.SignedAt = time.Now().UTC()

		sig, signErr := newCodec(cfg).SignIntent(intent, key)
		if signErr != nil {
			return fmt.Errorf("sign intent: %w", signErr)
		}

		payload.Signature = hexutil.Encode(sig)
		payload.SignedAt = intent.SignedAt.Format(time.RFC3339)
	}

	client := newRelayerClient(url, logger)
	if err := client.Start(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	if err := client.StartAuction(payload); err != nil {
		return fmt.Errorf("start auction: %w", err)
	}

	fmt.Printf("Maker:  %s\n", intent.Maker.Hex())
	fmt.Printf("Wager:  %s\n", intent.Wager.String())
	fmt.Printf("Legs:   %d\n\n", len(intent.Legs))

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

			switch env.Type {
			case types.MsgAck:
				var ack types.AckPayload
				if err := json.Unmarshal(env.Payload, &ack); err != nil {
					return fmt.Errorf("decode ack: %w", err)
				}

				fmt.Printf("Auction opened: %s\n", ack.AuctionID)
				if err := client.Subscribe(ack.AuctionID); err != nil {
					return fmt.Errorf("subscribe: %w", err)
				}

			case types.MsgBids:
				var bids types.BidsPayload
				if err := json.Unmarshal(env.Payload, &bids); err != nil {
					return fmt.Errorf("decode bids: %w", err)
				}

				printBids(&bids)

				if bids.State != "open" {
					fmt.Printf("\nAuction %s: %s\n", bids.AuctionID, bids.State)
					return nil
				}

			case types.MsgError:
				var perr types.ErrorPayload
				if err := json.Unmarshal(env.Payload, &perr); err != nil {
					return fmt.Errorf("decode error: %w", err)
				}
				return fmt.Errorf("relayer rejected: %s: %s", perr.Code, perr.Message)
			}
		}
	}
}
