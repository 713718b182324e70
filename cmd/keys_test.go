package cmd

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKey(t *testing.T) {
	const keyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	tests := []struct {
		name      string
		value     string
		expectErr bool
	}{
		{
			name:  "plain-hex",
			value: keyHex,
		},
		{
			name:  "0x-prefixed",
			value: "0x" + keyHex,
		},
		{
			name:      "unset",
			value:     "",
			expectErr: true,
		},
		{
			name:      "not-hex",
			value:     "not-a-key",
			expectErr: true,
		},
		{
			name:      "truncated",
			value:     keyHex[:32],
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_PRIVATE_KEY", tt.value)

			key, err := loadKey("TEST_PRIVATE_KEY")
			if tt.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, key)

			// Prefixed and bare forms must resolve to the same signer.
			want, err := crypto.HexToECDSA(keyHex)
			require.NoError(t, err)
			assert.Equal(t, crypto.PubkeyToAddress(want.PublicKey), crypto.PubkeyToAddress(key.PublicKey))
		})
	}
}
