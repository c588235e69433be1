package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseLoginMessage(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	msg := BuildLoginMessage("Gavlik Capital", "0xabc0000000000000000000000000000000000123", "n1", issued)

	assert.Contains(t, msg, "Welcome to Gavlik Capital!")
	assert.Contains(t, msg, "Timestamp: 2025-03-01T12:30:45.123Z")

	parsed, err := ParseLoginMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "Gavlik Capital", parsed.Platform)
	assert.Equal(t, "0xabc0000000000000000000000000000000000123", parsed.WalletAddress)
	assert.Equal(t, "n1", parsed.Nonce)
	assert.True(t, parsed.IssuedAt.Equal(issued))
}

func TestParseLoginMessage_Malformed(t *testing.T) {
	cases := map[string]string{
		"no header":     "hello\nWallet: 0x1\nNonce: n\nTimestamp: 2025-03-01T12:30:45.123Z",
		"no nonce":      "Welcome to X!\nWallet: 0x1\nTimestamp: 2025-03-01T12:30:45.123Z",
		"bad timestamp": "Welcome to X!\nWallet: 0x1\nNonce: n\nTimestamp: yesterday",
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLoginMessage(msg)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestValidateTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &LoginMessage{IssuedAt: now.Add(-2 * time.Minute)}

	assert.NoError(t, msg.ValidateTimestamp(now, 5*time.Minute, time.Minute))
	assert.Error(t, msg.ValidateTimestamp(now, time.Minute, time.Minute))

	future := &LoginMessage{IssuedAt: now.Add(3 * time.Minute)}
	assert.Error(t, future.ValidateTimestamp(now, 5*time.Minute, time.Minute))
}
