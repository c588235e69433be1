package wallet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gavlik-capital/pkg/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denyAll(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestAdapterSnapshotFollowsProvider(t *testing.T) {
	provider, err := NewKeyProviderFromHex("", 137, nil)
	require.NoError(t, err)
	adapter := NewAdapter(provider)

	s := adapter.Snapshot()
	assert.True(t, s.Ready)
	assert.False(t, s.Connected)
	assert.Empty(t, s.Address)

	updates, cancel := adapter.Subscribe()
	defer cancel()

	adapter.Login(context.Background())
	select {
	case s = <-updates:
	case <-time.After(time.Second):
		t.Fatal("no snapshot published on login")
	}
	assert.True(t, s.Connected)
	assert.Equal(t, strings.ToLower(provider.Address()), s.Address)
	assert.Equal(t, int64(137), s.ChainID)

	adapter.Logout(context.Background())
	s = <-updates
	assert.False(t, s.Connected)
	assert.Empty(t, s.Address)
}

func TestAdapterSubscribeKeepsLatest(t *testing.T) {
	provider, err := NewKeyProviderFromHex("", 1, nil)
	require.NoError(t, err)
	adapter := NewAdapter(provider)

	updates, cancel := adapter.Subscribe()
	adapter.Login(context.Background())
	adapter.Logout(context.Background())
	adapter.Login(context.Background())

	s := <-updates
	assert.True(t, s.Connected)
	select {
	case <-updates:
		t.Fatal("expected a single coalesced snapshot")
	default:
	}

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestAdapterSign(t *testing.T) {
	provider, err := NewKeyProviderFromHex("", 1, nil)
	require.NoError(t, err)
	adapter := NewAdapter(provider)
	ctx := context.Background()

	_, err = adapter.Sign(ctx, "hello")
	assert.ErrorIs(t, err, ErrNoWallet)

	adapter.Login(ctx)
	sig, err := adapter.Sign(ctx, "hello")
	require.NoError(t, err)
	assert.NoError(t, crypto.VerifySignature("hello", sig, adapter.Snapshot().Address))
}

func TestAdapterSignRejected(t *testing.T) {
	provider, err := NewKeyProviderFromHex("", 1, denyAll)
	require.NoError(t, err)
	adapter := NewAdapter(provider)
	adapter.Login(context.Background())

	_, err = adapter.Sign(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUserRejected)
}

type textRejectWallet struct{}

func (textRejectWallet) Address() string { return "0xAbC0000000000000000000000000000000000123" }
func (textRejectWallet) ChainID() int64  { return 1 }
func (textRejectWallet) Sign(context.Context, string) (string, error) {
	return "", errors.New("MetaMask Tx Signature: User denied message signature.")
}

type stubProvider struct{}

func (stubProvider) Ready() bool                  { return true }
func (stubProvider) Authenticated() bool          { return true }
func (stubProvider) Wallets() []Wallet            { return []Wallet{textRejectWallet{}} }
func (stubProvider) Login(context.Context) error  { return nil }
func (stubProvider) Logout(context.Context) error { return errors.New("sdk offline") }
func (stubProvider) OnChange(func())              {}

func TestAdapterMapsTextualRejection(t *testing.T) {
	adapter := NewAdapter(stubProvider{})

	_, err := adapter.Sign(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUserRejected)
	assert.Equal(t, "0xabc0000000000000000000000000000000000123", adapter.Snapshot().Address)

	// 错误只记录日志
	adapter.Logout(context.Background())
}

func TestPromptApprover(t *testing.T) {
	var out bytes.Buffer
	ok, err := PromptApprover(strings.NewReader("y\n"), &out)(context.Background(), "0xabc", "msg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "msg")

	ok, err = PromptApprover(strings.NewReader("\n"), &out)(context.Background(), "0xabc", "msg")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = PromptApprover(strings.NewReader(""), &out)(context.Background(), "0xabc", "msg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPromptApproverCancelledPromptHandsOverRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	approve := PromptApprover(pr, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := approve(ctx, "0xabc", "first")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() { _, _ = pw.Write([]byte("y\n")) }()
	ok, err := approve(context.Background(), "0xabc", "second")
	require.NoError(t, err)
	assert.True(t, ok)

	go func() { _, _ = pw.Write([]byte("n\n")) }()
	ok, err = approve(context.Background(), "0xabc", "third")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewKeyProviderFromHex(t *testing.T) {
	p, err := NewKeyProviderFromHex("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", p.Address())

	_, err = NewKeyProviderFromHex("zz", 1, nil)
	assert.Error(t, err)
}
