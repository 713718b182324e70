package codec

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/parlaymkt/auction-relayer/internal/auction"
)

// EIP-712 domain of the settlement contract. The struct shape is fixed by
// the contract's hashing scheme and must track it byte for byte.
const (
	settlementName    = "ParlaySettlement"
	settlementVersion = "1"
	bidPrimaryType    = "ParlayBid"
)

var bidTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	bidPrimaryType: {
		{Name: "maker", Type: "address"},
		{Name: "wager", Type: "uint256"},
		{Name: "predictedOutcomes", Type: "bytes"},
		{Name: "resolver", Type: "address"},
		{Name: "taker", Type: "address"},
		{Name: "takerWager", Type: "uint256"},
		{Name: "takerDeadline", Type: "uint256"},
		{Name: "takerNonce", Type: "uint256"},
	},
}

// BidTypedData assembles the typed-data structure a taker signs to bid. The
// message embeds the maker's full auction terms next to the bid's own wager,
// deadline and nonce, so the one signature binds the taker to both sides of
// the trade.
func (c *Codec) BidTypedData(intent *auction.MakerIntent, bid *auction.TakerBid) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       bidTypes,
		PrimaryType: bidPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              settlementName,
			Version:           settlementVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(c.cfg.ChainID)),
			VerifyingContract: c.cfg.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"maker":             intent.Maker.Hex(),
			"wager":             (*math.HexOrDecimal256)(new(big.Int).Set(intent.Wager)),
			"predictedOutcomes": hexutil.Encode(EncodeLegs(intent.Legs)),
			"resolver":          intent.Resolver.Hex(),
			"taker":             bid.Taker.Hex(),
			"takerWager":        (*math.HexOrDecimal256)(new(big.Int).Set(bid.Wager)),
			"takerDeadline":     (*math.HexOrDecimal256)(big.NewInt(bid.Deadline.Unix())),
			"takerNonce":        (*math.HexOrDecimal256)(new(big.Int).SetUint64(bid.Nonce)),
		},
	}
}

// BidDigest hashes the bid typed data per EIP-712.
func (c *Codec) BidDigest(intent *auction.MakerIntent, bid *auction.TakerBid) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(c.BidTypedData(intent, bid))
	if err != nil {
		return nil, fmt.Errorf("%w: hash bid typed data: %v", ErrEncoding, err)
	}
	return digest, nil
}

// SignBid signs the bid attestation with the given key and returns a
// wallet-compatible 65-byte signature.
func (c *Codec) SignBid(intent *auction.MakerIntent, bid *auction.TakerBid, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := c.BidDigest(intent, bid)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("sign bid: %w", err)
	}

	sig[64] += 27
	return sig, nil
}

// VerifyBid recovers the signer of the bid attestation and requires it to
// equal the claimed taker address.
func (c *Codec) VerifyBid(intent *auction.MakerIntent, bid *auction.TakerBid) error {
	digest, err := c.BidDigest(intent, bid)
	if err != nil {
		return err
	}

	signer, err := recoverSigner(digest, bid.Signature)
	if err != nil {
		return err
	}

	if signer != bid.Taker {
		return fmt.Errorf("%w: recovered %s, claimed %s",
			auction.ErrInvalidSignature, signer.Hex(), bid.Taker.Hex())
	}

	return nil
}
