package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gavlik-capital/pkg/crypto"
	"gavlik-capital/pkg/logger"
)

var (
	// ErrUserRejected 用户拒绝签名
	ErrUserRejected = errors.New("user rejected the signature request")
	ErrNoWallet     = errors.New("no wallet connected")
)

// Wallet 已连接的钱包
type Wallet interface {
	Address() string
	ChainID() int64
	Sign(ctx context.Context, message string) (string, error)
}

// Provider 内嵌钱包SDK
type Provider interface {
	Ready() bool
	Authenticated() bool
	Wallets() []Wallet
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	// OnChange 注册状态变化回调
	OnChange(fn func())
}

// Snapshot 钱包连接状态
type Snapshot struct {
	Ready     bool
	Connected bool
	Address   string // 小写，未连接时为空
	ChainID   int64
}

// Adapter 把Provider包装成可订阅的连接状态，不持有业务状态
type Adapter struct {
	provider Provider

	mu   sync.Mutex
	subs map[int]chan Snapshot
	next int
}

func NewAdapter(provider Provider) *Adapter {
	a := &Adapter{
		provider: provider,
		subs:     make(map[int]chan Snapshot),
	}
	provider.OnChange(a.publish)
	return a
}

// Snapshot 当前连接状态
func (a *Adapter) Snapshot() Snapshot {
	s := Snapshot{
		Ready:     a.provider.Ready(),
		Connected: a.provider.Authenticated(),
	}
	if w := a.primary(); w != nil {
		s.Address = crypto.NormalizeAddress(w.Address())
		s.ChainID = w.ChainID()
	}
	return s
}

// Subscribe 订阅状态变化，慢消费者只会收到最新状态
func (a *Adapter) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	a.mu.Lock()
	id := a.next
	a.next++
	a.subs[id] = ch
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (a *Adapter) publish() {
	s := a.Snapshot()

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// Sign 请求已连接钱包签名，用户拒绝时返回 ErrUserRejected
func (a *Adapter) Sign(ctx context.Context, message string) (string, error) {
	w := a.primary()
	if w == nil {
		return "", ErrNoWallet
	}
	signature, err := w.Sign(ctx, message)
	if err != nil {
		if isRejection(err) {
			return "", fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
		return "", fmt.Errorf("wallet sign: %w", err)
	}
	return signature, nil
}

// Login 打开连接流程，结果通过订阅观察
func (a *Adapter) Login(ctx context.Context) {
	if err := a.provider.Login(ctx); err != nil {
		logger.Error("WalletAdapter Login Error: ", err)
	}
}

// Logout 断开连接，结果通过订阅观察
func (a *Adapter) Logout(ctx context.Context) {
	if err := a.provider.Logout(ctx); err != nil {
		logger.Error("WalletAdapter Logout Error: ", err)
	}
}

func (a *Adapter) primary() Wallet {
	if !a.provider.Authenticated() {
		return nil
	}
	wallets := a.provider.Wallets()
	if len(wallets) == 0 {
		return nil
	}
	return wallets[0]
}

// isRejection 兼容只返回文本错误的钱包实现
func isRejection(err error) bool {
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}
