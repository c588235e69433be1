package crypto

import (
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEthereumAddress(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"0xd8da6bf26964af9d7eed9e03e53415d37aa96045", true},
		{"0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045", true},
		{"d8da6bf26964af9d7eed9e03e53415d37aa96045", false},
		{"0xd8da6bf269", false},
		{"0xg8da6bf26964af9d7eed9e03e53415d37aa96045", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEthereumAddress(tt.address))
		})
	}
}

func TestChecksumAddress(t *testing.T) {
	assert.Equal(t, "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045", ChecksumAddress("0xd8da6bf26964af9d7eed9e03e53415d37aa96045"))
}

func TestSignAndRecover(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	address := AddressFromKey(key)

	message := "Welcome to Gavlik Capital!"
	sig, err := SignMessage(key, message)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 132)

	recovered, err := RecoverAddress(message, sig)
	require.NoError(t, err)
	assert.Equal(t, address, recovered)

	assert.NoError(t, VerifySignature(message, sig, strings.ToUpper(address[:2])+address[2:]))
}

func TestVerifySignature_TamperedMessage(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	sig, err := SignMessage(key, "original")
	require.NoError(t, err)

	err = VerifySignature("tampered", sig, AddressFromKey(key))
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestRecoverAddress_AcceptsZeroOneRecoveryID(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	raw, err := ethcrypto.Sign(HashMessage("hello"), key)
	require.NoError(t, err)

	recovered, err := RecoverAddress("hello", strings.TrimPrefix(encodeHex(raw), "0x"))
	require.NoError(t, err)
	assert.Equal(t, AddressFromKey(key), recovered)
}

func TestRecoverAddress_InvalidFormat(t *testing.T) {
	_, err := RecoverAddress("hello", "0x1234")
	assert.ErrorIs(t, err, ErrInvalidSignatureFormat)

	_, err = RecoverAddress("hello", "0xzz")
	assert.ErrorIs(t, err, ErrInvalidSignatureFormat)

	bad := "0x" + strings.Repeat("11", 64) + "05"
	_, err = RecoverAddress("hello", bad)
	assert.ErrorIs(t, err, ErrInvalidSignatureFormat)
}

func encodeHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '0', 'x'
	for i, v := range b {
		out[2+i*2] = digits[v>>4]
		out[3+i*2] = digits[v&0x0f]
	}
	return string(out)
}
