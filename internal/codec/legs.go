package codec

import (
	"fmt"

	"github.com/parlaymkt/auction-relayer/internal/auction"
)

// legSize is the encoded width of one leg: 32-byte market id + 1 outcome byte.
const legSize = 33

// EncodeLegs packs an ordered leg sequence into the opaque blob used for
// transport and for both signature payloads. The encoding is positional, so
// reordering legs changes every signature over the blob.
func EncodeLegs(legs []auction.Leg) []byte {
	blob := make([]byte, 0, len(legs)*legSize)
	for _, leg := range legs {
		blob = append(blob, leg.MarketID[:]...)
		if leg.Outcome {
			blob = append(blob, 1)
		} else {
			blob = append(blob, 0)
		}
	}
	return blob
}

// DecodeLegs unpacks a leg blob. A blob that is empty, not a whole number of
// legs, or carries an outcome byte other than 0 or 1 is an encoding error.
func DecodeLegs(blob []byte) ([]auction.Leg, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty predicted outcomes", ErrEncoding)
	}
	if len(blob)%legSize != 0 {
		return nil, fmt.Errorf("%w: predicted outcomes length %d is not a multiple of %d", ErrEncoding, len(blob), legSize)
	}

	legs := make([]auction.Leg, 0, len(blob)/legSize)
	for off := 0; off < len(blob); off += legSize {
		var leg auction.Leg
		copy(leg.MarketID[:], blob[off:off+32])

		switch blob[off+32] {
		case 0:
			leg.Outcome = false
		case 1:
			leg.Outcome = true
		default:
			return nil, fmt.Errorf("%w: outcome byte %d at leg %d", ErrEncoding, blob[off+32], off/legSize)
		}

		legs = append(legs, leg)
	}

	return legs, nil
}
