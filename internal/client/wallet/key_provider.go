package wallet

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"strings"
	"sync"

	"gavlik-capital/pkg/crypto"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Approver 签名确认，返回false表示用户拒绝
type Approver func(ctx context.Context, address, message string) (bool, error)

// AutoApprove 自动同意所有签名请求
func AutoApprove(context.Context, string, string) (bool, error) {
	return true, nil
}

// PromptApprover 在终端展示消息并等待 y/N 确认
// 所有提示共用一个读取协程，被取消的提示留下的读取由下一次提示接收
func PromptApprover(in io.Reader, out io.Writer) Approver {
	p := &linePrompter{
		reader:    bufio.NewReader(in),
		requests:  make(chan struct{}),
		responses: make(chan lineResult, 1),
		turn:      make(chan struct{}, 1),
	}
	return func(ctx context.Context, address, message string) (bool, error) {
		fmt.Fprintf(out, "\nSignature request for %s:\n\n%s\n\nSign this message? [y/N]: ", address, message)

		line, err := p.readLine(ctx)
		if err != nil && err != io.EOF {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

type lineResult struct {
	line string
	err  error
}

// linePrompter 保证同一时刻最多只有一个 ReadString 在进行
type linePrompter struct {
	reader    *bufio.Reader
	requests  chan struct{}
	responses chan lineResult
	turn      chan struct{}

	once    sync.Once
	mu      sync.Mutex
	pending bool
}

func (p *linePrompter) loop() {
	for range p.requests {
		line, err := p.reader.ReadString('\n')
		p.responses <- lineResult{line: line, err: err}
	}
}

func (p *linePrompter) readLine(ctx context.Context) (string, error) {
	select {
	case p.turn <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.turn }()

	p.once.Do(func() { go p.loop() })

	p.mu.Lock()
	if !p.pending {
		p.pending = true
		p.mu.Unlock()
		p.requests <- struct{}{}
	} else {
		p.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-p.responses:
		p.mu.Lock()
		p.pending = false
		p.mu.Unlock()
		return r.line, r.err
	}
}

// KeyProvider 基于本地secp256k1私钥的内嵌钱包
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	chainID int64
	approve Approver

	mu        sync.Mutex
	connected bool
	listeners []func()
}

func NewKeyProvider(key *ecdsa.PrivateKey, chainID int64, approve Approver) *KeyProvider {
	if approve == nil {
		approve = AutoApprove
	}
	return &KeyProvider{
		key:     key,
		chainID: chainID,
		approve: approve,
	}
}

// NewKeyProviderFromHex 从十六进制私钥创建，空串时生成临时私钥
func NewKeyProviderFromHex(hexKey string, chainID int64, approve Approver) (*KeyProvider, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		key, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate wallet key: %w", err)
		}
		return NewKeyProvider(key, chainID, approve), nil
	}
	key, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet private key: %w", err)
	}
	return NewKeyProvider(key, chainID, approve), nil
}

func (p *KeyProvider) Ready() bool {
	return true
}

func (p *KeyProvider) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *KeyProvider) Wallets() []Wallet {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	return []Wallet{&keyWallet{provider: p}}
}

func (p *KeyProvider) Login(context.Context) error {
	p.setConnected(true)
	return nil
}

func (p *KeyProvider) Logout(context.Context) error {
	p.setConnected(false)
	return nil
}

func (p *KeyProvider) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Address 钱包地址（EIP-55校验和格式）
func (p *KeyProvider) Address() string {
	return crypto.ChecksumAddress(crypto.AddressFromKey(p.key))
}

func (p *KeyProvider) setConnected(connected bool) {
	p.mu.Lock()
	changed := p.connected != connected
	p.connected = connected
	listeners := append([]func(){}, p.listeners...)
	p.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn()
	}
}

type keyWallet struct {
	provider *KeyProvider
}

func (w *keyWallet) Address() string {
	return w.provider.Address()
}

func (w *keyWallet) ChainID() int64 {
	return w.provider.chainID
}

func (w *keyWallet) Sign(ctx context.Context, message string) (string, error) {
	ok, err := w.provider.approve(ctx, w.Address(), message)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUserRejected
	}
	return crypto.SignMessage(w.provider.key, message)
}
