package codec

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/parlaymkt/auction-relayer/internal/auction"
)

// IntentMessage renders the human-readable attestation a maker signs to open
// an auction. Every field that shapes the trade is bound into the text, so a
// signature over it commits the maker to exactly these terms.
func (c *Codec) IntentMessage(intent *auction.MakerIntent) string {
	return fmt.Sprintf(
		"%s wants you to sign in with your Ethereum account:\n"+
			"%s\n"+
			"\n"+
			"Open a parlay auction binding this wager to the predicted outcomes below.\n"+
			"\n"+
			"Wager: %s\n"+
			"Predicted Outcomes: %s\n"+
			"Resolver: %s\n"+
			"\n"+
			"URI: %s\n"+
			"Version: 1\n"+
			"Chain ID: %s\n"+
			"Nonce: %d\n"+
			"Issued At: %s",
		c.cfg.Domain,
		intent.Maker.Hex(),
		intent.Wager.String(),
		hexutil.Encode(EncodeLegs(intent.Legs)),
		intent.Resolver.Hex(),
		c.cfg.URI,
		c.cfg.ChainID.String(),
		intent.Nonce,
		intent.SignedAt.UTC().Format(time.RFC3339),
	)
}

// SignIntent signs the intent attestation with the given key and returns a
// wallet-compatible 65-byte signature (recovery id 27/28).
func (c *Codec) SignIntent(intent *auction.MakerIntent, key *ecdsa.PrivateKey) ([]byte, error) {
	hash := accounts.TextHash([]byte(c.IntentMessage(intent)))

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("sign intent: %w", err)
	}

	sig[64] += 27
	return sig, nil
}

// VerifyIntent recovers the signer of the intent's attestation and requires
// it to equal the claimed maker address. A mismatch is InvalidSignature, not
// a retryable condition.
func (c *Codec) VerifyIntent(intent *auction.MakerIntent) error {
	if !intent.Attested() {
		return fmt.Errorf("%w: intent carries no signature", auction.ErrInvalidSignature)
	}

	hash := accounts.TextHash([]byte(c.IntentMessage(intent)))

	signer, err := recoverSigner(hash, intent.Signature)
	if err != nil {
		return err
	}

	if signer != intent.Maker {
		return fmt.Errorf("%w: recovered %s, claimed %s",
			auction.ErrInvalidSignature, signer.Hex(), intent.Maker.Hex())
	}

	return nil
}
