package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
	"github.com/parlaymkt/auction-relayer/pkg/config"
	"github.com/parlaymkt/auction-relayer/pkg/types"
	"github.com/parlaymkt/auction-relayer/pkg/wsclient"
)

// loadKey reads a hex private key from an environment variable.
func loadKey(envVar string) (*ecdsa.PrivateKey, error) {
	hexKey := os.Getenv(envVar)
	if hexKey == "" {
		return nil, fmt.Errorf("%s not set", envVar)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", envVar, err)
	}

	return key, nil
}

// parseLegs parses a comma-separated list of market legs of the form
// <marketId-hex>:<yes|no>, e.g. "0xabc...:yes,0xdef...:no".
func parseLegs(spec string) ([]auction.Leg, error) {
	if spec == "" {
		return nil, fmt.Errorf("no legs given")
	}

	parts := strings.Split(spec, ",")
	legs := make([]auction.Leg, 0, len(parts))

	for _, part := range parts {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("leg %q: want <marketId>:<yes|no>", part)
		}

		var leg auction.Leg
		leg.MarketID = [32]byte(common.HexToHash(fields[0]))

		switch strings.ToLower(fields[1]) {
		case "yes":
			leg.Outcome = true
		case "no":
			leg.Outcome = false
		default:
			return nil, fmt.Errorf("leg %q: outcome must be yes or no", part)
		}

		legs = append(legs, leg)
	}

	return legs, nil
}

// parseAddress parses a hex address, rejecting malformed input instead of
// zero-filling it.
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseWager parses a base-unit decimal wager.
func parseWager(s string) (*big.Int, error) {
	wager, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wager %q", s)
	}
	if wager.Sign() <= 0 {
		return nil, fmt.Errorf("wager must be positive, got %s", s)
	}
	return wager, nil
}

// printBids renders one bid-list broadcast to stdout.
func printBids(bids *types.BidsPayload) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "[%s] %s\t%d bid(s)\n", time.Now().Format("15:04:05"), bids.State, len(bids.Bids))
	for _, bid := range bids.Bids {
		fmt.Fprintf(w, "  %s\t%s\tdeadline %s\tnonce %d\n",
			bid.Taker,
			bid.Wager,
			time.Unix(bid.Deadline, 0).Format("15:04:05"),
			bid.Nonce)
	}

	w.Flush()
}

// newRelayerClient builds a client with CLI-appropriate defaults.
func newRelayerClient(url string, logger *zap.Logger) *wsclient.Client {
	return wsclient.New(wsclient.Config{
		URL:                   url,
		DialTimeout:           10 * time.Second,
		PingInterval:          10 * time.Second,
		ReconnectInitialDelay: time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		ReconnectBackoffMult:  2.0,
		MessageBufferSize:     256,
		Logger:                logger,
	})
}

// newCodec builds the signing codec from the environment config, so client
// signatures land in the same domain the relayer verifies against.
func newCodec(cfg *config.Config) *codec.Codec {
	return codec.New(codec.Config{
		Domain:            cfg.SIWEDomain,
		URI:               cfg.SIWEURI,
		ChainID:           cfg.ChainIDBig(),
		VerifyingContract: common.HexToAddress(cfg.SettlementContract),
	})
}
