package cmd

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/pkg/config"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var bidCmd = &cobra.Command{
	Use:   "bid <auction-id>",
	Short: "Bid into an open auction as a taker",
	Long: `Signs a counter-offer with the key in TAKER_PRIVATE_KEY and submits
it into an open auction. The maker's terms (--maker, --maker-wager, --legs,
--resolver, --maker-nonce) must match the auction.started broadcast exactly,
since the bid signature binds them.

Example:
  auction-relayer bid 6f1b... \
    --wager 300000000 --deadline 2m --nonce 9 \
    --maker 0x1111... --maker-wager 250000000 \
    --legs 0xabc...:yes,0xdef...:no --resolver 0x2222... --maker-nonce 3`,
	Args: cobra.ExactArgs(1),
	RunE: runBid,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(bidCmd)
	bidCmd.Flags().String("url", "ws://localhost:8080/ws", "Relayer WebSocket URL")
	bidCmd.Flags().String("wager", "", "Taker wager in base units (required)")
	bidCmd.Flags().Duration("deadline", 2*time.Minute, "How long the bid stays valid")
	bidCmd.Flags().Uint64("nonce", 0, "Taker nonce at the settlement contract")
	bidCmd.Flags().String("maker", "", "Maker address from auction.started (required)")
	bidCmd.Flags().String("maker-wager", "", "Maker wager from auction.started (required)")
	bidCmd.Flags().String("legs", "", "Legs from auction.started: <marketId>:<yes|no>,... (required)")
	bidCmd.Flags().String("resolver", "", "Resolver address from auction.started (required)")
	bidCmd.Flags().Uint64("maker-nonce", 0, "Maker nonce from auction.started")
	_ = bidCmd.MarkFlagRequired("wager")
	_ = bidCmd.MarkFlagRequired("maker")
	_ = bidCmd.MarkFlagRequired("maker-wager")
	_ = bidCmd.MarkFlagRequired("legs")
	_ = bidCmd.MarkFlagRequired("resolver")
}

func runBid(cmd *cobra.Command, args []string) error {
	auctionID := args[0]

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
	deadline, _ := cmd.Flags().GetDuration("deadline")
	nonce, _ := cmd.Flags().GetUint64("nonce")
	makerStr, _ := cmd.Flags().GetString("maker")
	makerWagerStr, _ := cmd.Flags().GetString("maker-wager")
	legsSpec, _ := cmd.Flags().GetString("legs")
	resolverStr, _ := cmd.Flags().GetString("resolver")
	makerNonce, _ := cmd.Flags().GetUint64("maker-nonce")

	wager, err := parseWager(wagerStr)
	if err != nil {
		return err
	}
	makerWager, err := parseWager(makerWagerStr)
	if err != nil {
		return err
	}
	maker, err := parseAddress(makerStr)
	if err != nil {
		return err
	}
	resolver, err := parseAddress(resolverStr)
	if err != nil {
		return err
	}
	legs, err := parseLegs(legsSpec)
	if err != nil {
		return err
	}

	key, err := loadKey("TAKER_PRIVATE_KEY")
	if err != nil {
		return err
	}

	// Reconstruct the maker's terms so the bid signature binds them.
	intent := &auction.MakerIntent{
		Maker:    maker,
		Wager:    makerWager,
		Resolver: resolver,
		Legs:     legs,
		Nonce:    makerNonce,
	}

	bid := &auction.TakerBid{
		Taker:    crypto.PubkeyToAddress(key.PublicKey),
		Wager:    wager,
		Deadline: time.Now().Add(deadline).Truncate(time.Second),
		Nonce:    nonce,
	}

	sig, err := newCodec(cfg).SignBid(intent, bid, key)
	if err != nil {
		return fmt.Errorf("sign bid: %w", err)
	}

	client := newRelayerClient(url, logger)
	if err := client.Start(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	payload := types.BidPayload{
		AuctionID:      auctionID,
		Maker:          bid.Taker.Hex(),
		MakerWager:     bid.Wager.String(),
		MakerDeadline:  bid.Deadline.Unix(),
		MakerNonce:     bid.Nonce,
		MakerSignature: hexutil.Encode(sig),
	}

	if err := client.SubmitBid(payload); err != nil {
		return fmt.Errorf("submit bid: %w", err)
	}

	if err := client.Subscribe(auctionID); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	fmt.Printf("Taker:  %s\n", bid.Taker.Hex())
	fmt.Printf("Wager:  %s\n", bid.Wager.String())
	fmt.Printf("Valid:  until %s\n\n", bid.Deadline.Format(time.RFC3339))

	// Wait for the bid to show up in the broadcast, or for a rejection.
	timeout := time.After(10 * time.Second)
	for {
		select {
		case <-timeout:
			return fmt.Errorf("no confirmation within 10s")

		case env, ok := <-client.Messages():
			if !ok {
				return fmt.Errorf("connection closed")
			}

			switch env.Type {
			case types.MsgBids:
				var bids types.BidsPayload
				if err := json.Unmarshal(env.Payload, &bids); err != nil {
					return fmt.Errorf("decode bids: %w", err)
				}

				for _, view := range bids.Bids {
					if view.Taker == bid.Taker.Hex() && view.Nonce == bid.Nonce {
						fmt.Printf("Bid accepted into auction %s (%d bid(s) total)\n",
							bids.AuctionID, len(bids.Bids))
						return nil
					}
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
