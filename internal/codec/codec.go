package codec

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/parlaymkt/auction-relayer/internal/auction"
)

// ErrEncoding marks a malformed payload: reject, no retry.
var ErrEncoding = errors.New("malformed payload")

// Codec builds and verifies the two signable payloads of the protocol: the
// SIWE-style plaintext attestation for auction starts and the EIP-712 typed
// bid attestation. Pure functions over its configuration; no state, no I/O.
type Codec struct {
	cfg Config
}

// Config pins the signing context. Domain and URI appear verbatim in the
// SIWE message; ChainID and VerifyingContract form the EIP-712 domain of the
// settlement contract.
type Config struct {
	Domain            string
	URI               string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// New creates a codec for the given signing context.
func New(cfg Config) *Codec {
	return &Codec{cfg: cfg}
}

// recoverSigner recovers the address that produced sig over hash. Accepts
// both wallet-style recovery ids (27/28) and raw ones (0/1).
func recoverSigner(hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrEncoding, len(sig))
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recover signer: %v", auction.ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
