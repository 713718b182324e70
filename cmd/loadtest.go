package cmd

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
	"github.com/parlaymkt/auction-relayer/pkg/config"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Exercise a relayer with synthetic unsigned auctions",
	Long: `Opens many concurrent unsigned auctions and floods each with bids,
then reports throughput. The target relayer must run with ALLOW_UNSIGNED=true;
unsigned sessions never reach settlement, so this is safe against any
environment.

Example:
  auction-relayer loadtest --auctions 50 --bids 20`,
	RunE: runLoadtest,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(loadtestCmd)
	loadtestCmd.Flags().String("url", "ws://localhost:8080/ws", "Relayer WebSocket URL")
	loadtestCmd.Flags().Int("auctions", 10, "Concurrent auctions to open")
	loadtestCmd.Flags().Int("bids", 5, "Bids per auction")
	loadtestCmd.Flags().Duration("timeout", 2*time.Minute, "Overall run timeout")
}

func runLoadtest(cmd *cobra.Command, args []string) error {
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
	auctions, _ := cmd.Flags().GetInt("auctions")
	bidsPer, _ := cmd.Flags().GetInt("bids")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var opened, accepted, rejected atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for i := 0; i < auctions; i++ {
		worker := i
		g.Go(func() error {
			return runLoadtestWorker(ctx, url, worker, bidsPer, &opened, &accepted, &rejected)
		})
	}

	err = g.Wait()

	elapsed := time.Since(start)
	fmt.Printf("\nOpened:   %d auctions\n", opened.Load())
	fmt.Printf("Accepted: %d bids\n", accepted.Load())
	fmt.Printf("Rejected: %d messages\n", rejected.Load())
	fmt.Printf("Elapsed:  %s\n", elapsed.Round(time.Millisecond))

	return err
}

// runLoadtestWorker opens one unsigned auction and submits its bids over a
// dedicated connection, consuming broadcasts until the ack and bid echoes
// arrive.
func runLoadtestWorker(
	ctx context.Context,
	url string,
	worker, bidsPer int,
	opened, accepted, rejected *atomic.Int64,
) error {
	client := newRelayerClient(url, zap.NewNop())
	if err := client.Start(); err != nil {
		return fmt.Errorf("worker %d connect: %w", worker, err)
	}
	defer client.Close()

	legs := []auction.Leg{
		{MarketID: [32]byte{byte(worker), 0x01}, Outcome: true},
		{MarketID: [32]byte{byte(worker), 0x02}, Outcome: worker%2 == 0},
	}

	maker := common.BytesToAddress([]byte{0x10, byte(worker + 1)})
	startPayload := types.StartPayload{
		Taker:             maker.Hex(),
		Wager:             big.NewInt(int64(1_000_000 * (worker + 1))).String(),
		Resolver:          common.BytesToAddress([]byte{0x20}).Hex(),
		PredictedOutcomes: hexutil.Encode(codec.EncodeLegs(legs)),
		TakerNonce:        uint64(worker),
	}

	if err := client.StartAuction(startPayload); err != nil {
		return fmt.Errorf("worker %d start: %w", worker, err)
	}

	var auctionID string
	seen := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, chOk := <-client.Messages():
			if !chOk {
				return fmt.Errorf("worker %d: connection closed", worker)
			}

			switch env.Type {
			case types.MsgAck:
				var ack types.AckPayload
				if err := json.Unmarshal(env.Payload, &ack); err != nil {
					continue
				}

				auctionID = ack.AuctionID
				opened.Add(1)

				if err := client.Subscribe(auctionID); err != nil {
					return fmt.Errorf("worker %d subscribe: %w", worker, err)
				}

				for b := 0; b < bidsPer; b++ {
					bid := types.BidPayload{
						AuctionID:     auctionID,
						Maker:         common.BytesToAddress([]byte{0x30, byte(worker), byte(b + 1)}).Hex(),
						MakerWager:    big.NewInt(int64(1_000_000 * (b + 1))).String(),
						MakerDeadline: time.Now().Add(time.Hour).Unix(),
						MakerNonce:    uint64(b),
					}
					if err := client.SubmitBid(bid); err != nil {
						return fmt.Errorf("worker %d bid: %w", worker, err)
					}
				}

			case types.MsgBids:
				var bids types.BidsPayload
				if err := json.Unmarshal(env.Payload, &bids); err != nil {
					continue
				}

				if len(bids.Bids) > seen {
					accepted.Add(int64(len(bids.Bids) - seen))
					seen = len(bids.Bids)
				}

				if seen >= bidsPer {
					return nil
				}

			case types.MsgError:
				rejected.Add(1)
			}
		}
	}
}
