package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/parlaymkt/auction-relayer/internal/auction"
)

func TestEncodeDecodeLegs(t *testing.T) {
	legs := []auction.Leg{
		{MarketID: [32]byte{0x01, 0xaa}, Outcome: true},
		{MarketID: [32]byte{0x02, 0xbb}, Outcome: false},
		{MarketID: [32]byte{0xff}, Outcome: true},
	}

	blob := EncodeLegs(legs)
	if len(blob) != 3*33 {
		t.Fatalf("blob length = %d, want %d", len(blob), 3*33)
	}

	decoded, err := DecodeLegs(blob)
	if err != nil {
		t.Fatalf("DecodeLegs() error = %v", err)
	}

	if len(decoded) != len(legs) {
		t.Fatalf("decoded %d legs, want %d", len(decoded), len(legs))
	}
	for i := range legs {
		if decoded[i] != legs[i] {
			t.Errorf("leg %d = %+v, want %+v", i, decoded[i], legs[i])
		}
	}
}

func TestEncodeLegs_OutcomeBytes(t *testing.T) {
	blob := EncodeLegs([]auction.Leg{
		{MarketID: [32]byte{0x01}, Outcome: true},
		{MarketID: [32]byte{0x02}, Outcome: false},
	})

	if blob[32] != 0x01 {
		t.Errorf("yes outcome byte = %#x, want 0x01", blob[32])
	}
	if blob[65] != 0x00 {
		t.Errorf("no outcome byte = %#x, want 0x00", blob[65])
	}
	if !bytes.Equal(blob[:32], append([]byte{0x01}, make([]byte, 31)...)) {
		t.Error("first market id not encoded verbatim")
	}
}

func TestDecodeLegs_Malformed(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{name: "empty", blob: nil},
		{name: "truncated", blob: make([]byte, 33*2-1)},
		{name: "oversized partial leg", blob: make([]byte, 33+5)},
		{
			name: "invalid outcome byte",
			blob: func() []byte {
				b := make([]byte, 33)
				b[32] = 0x02
				return b
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLegs(tt.blob)
			if !errors.Is(err, ErrEncoding) {
				t.Errorf("DecodeLegs() error = %v, want ErrEncoding", err)
			}
		})
	}
}
