package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"gavlik-capital/internal/client/authclient"
	"gavlik-capital/internal/client/wallet"
	"gavlik-capital/internal/config"
	"gavlik-capital/internal/types"
	"gavlik-capital/pkg/logger"
)

// EventType 驱动状态机的事件
type EventType string

const (
	EventWalletConnected    EventType = "wallet-connected"
	EventWalletDisconnected EventType = "wallet-disconnected"
	EventAttemptSucceeded   EventType = "attempt-succeeded"
	EventAttemptFailed      EventType = "attempt-failed"
	EventCooldownElapsed    EventType = "cooldown-elapsed"
)

// Event 状态机事件
type Event struct {
	Type     EventType
	Snapshot wallet.Snapshot
	Address  string
	Result   *types.VerifyResponse
	Err      error
}

// Authenticator 钱包认证客户端
type Authenticator interface {
	Authenticate(ctx context.Context, walletAddress string, sign authclient.SignFunc) (*types.VerifyResponse, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	CurrentUser(ctx context.Context) *types.User
}

// WalletAdapter 钱包连接状态与签名
type WalletAdapter interface {
	Snapshot() wallet.Snapshot
	Subscribe() (<-chan wallet.Snapshot, func())
	Sign(ctx context.Context, message string) (string, error)
	Logout(ctx context.Context)
}

// Notifier 用户提示
type Notifier interface {
	Success(title, body string)
	Error(title, body string)
	Warning(title, body string)
}

// Router 页面跳转
type Router interface {
	Push(path string)
}

// Config 自动认证配置
type Config struct {
	PlatformName  string
	SettleDelay   time.Duration
	Cooldown      time.Duration
	RedirectDelay time.Duration
	RedirectPath  string
	// OnSettled 每次尝试结束（成功或失败）后回调，静默放弃的尝试不回调
	OnSettled func(resp *types.VerifyResponse, err error)
}

// ConfigFromClient 从客户端配置生成
func ConfigFromClient(cfg *config.Config) Config {
	return Config{
		PlatformName:  cfg.Auth.PlatformName,
		SettleDelay:   cfg.Client.SettleDelay,
		Cooldown:      cfg.Client.Cooldown,
		RedirectDelay: cfg.Client.RedirectDelay,
		RedirectPath:  cfg.Client.RedirectPath,
	}
}

// Orchestrator 钱包连接后自动发起一次认证
type Orchestrator struct {
	auth   Authenticator
	wallet WalletAdapter
	notify Notifier
	router Router
	cfg    Config

	mu       sync.Mutex
	state    State
	user     *types.User
	cooldown *time.Timer
	// connected 最近一次观察到的钱包连接状态，只有 已连接→断开 才算断开事件
	connected bool

	wg sync.WaitGroup
}

func New(auth Authenticator, adapter WalletAdapter, notify Notifier, router Router, cfg Config) *Orchestrator {
	if cfg.RedirectPath == "" {
		cfg.RedirectPath = "/dashboard"
	}
	if cfg.PlatformName == "" {
		cfg.PlatformName = "Gavlik Capital"
	}
	return &Orchestrator{
		auth:   auth,
		wallet: adapter,
		notify: notify,
		router: router,
		cfg:    cfg,
		state:  State{Phase: PhaseIdle},
	}
}

// Restore 从已保存的会话恢复认证状态
func (o *Orchestrator) Restore(ctx context.Context) bool {
	if !o.auth.IsAuthenticated(ctx) {
		return false
	}
	user := o.auth.CurrentUser(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Authenticated = true
	o.user = user
	return true
}

// State 当前状态副本
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// User 当前认证用户
func (o *Orchestrator) User() *types.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

// Run 把钱包状态变化转换为事件，直到ctx结束
func (o *Orchestrator) Run(ctx context.Context) error {
	updates, cancel := o.wallet.Subscribe()
	defer cancel()

	o.dispatch(ctx, o.wallet.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			o.dispatch(ctx, snap)
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, snap wallet.Snapshot) {
	if !snap.Ready {
		logger.Debug("Orchestrator: wallet provider not ready")
		return
	}

	o.mu.Lock()
	wasConnected := o.connected
	o.connected = snap.Connected
	o.mu.Unlock()

	if snap.Connected {
		o.Handle(ctx, Event{Type: EventWalletConnected, Snapshot: snap})
		return
	}
	if wasConnected {
		o.Handle(ctx, Event{Type: EventWalletDisconnected, Snapshot: snap})
	}
}

// Handle 处理单个事件
func (o *Orchestrator) Handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventWalletConnected:
		o.onConnected(ctx, ev.Snapshot)
	case EventWalletDisconnected:
		o.onDisconnected(ctx)
	case EventAttemptSucceeded:
		o.onSucceeded(ctx, ev.Address, ev.Result)
	case EventAttemptFailed:
		o.onFailed(ctx, ev.Address, ev.Err)
	case EventCooldownElapsed:
		o.onCooldownElapsed()
	default:
		logger.Warn("Orchestrator: unknown event", "type", ev.Type)
	}
}

func (o *Orchestrator) onConnected(ctx context.Context, snap wallet.Snapshot) {
	o.mu.Lock()
	if reason := Evaluate(o.state, snap); reason != Proceed {
		o.mu.Unlock()
		logger.Debug("Orchestrator: skip authentication", "reason", string(reason), "wallet_address", snap.Address)
		return
	}
	// 异步工作开始前占位，防止同一状态变化触发第二次尝试
	o.state.Phase = PhaseInFlight
	o.state.LastAddress = snap.Address
	o.mu.Unlock()

	logger.Info("Orchestrator: starting authentication", "wallet_address", snap.Address, "chain_id", snap.ChainID)
	o.wg.Add(1)
	go o.attempt(ctx, snap.Address)
}

func (o *Orchestrator) attempt(ctx context.Context, address string) {
	defer o.wg.Done()

	if o.cfg.SettleDelay > 0 {
		timer := time.NewTimer(o.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			o.abandon(address)
			return
		case <-timer.C:
		}
	}

	if o.stale(address) {
		o.abandon(address)
		return
	}

	resp, err := o.auth.Authenticate(ctx, address, o.wallet.Sign)
	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		o.abandon(address)
		return
	}
	if err != nil {
		o.Handle(ctx, Event{Type: EventAttemptFailed, Address: address, Err: err})
		return
	}
	o.Handle(ctx, Event{Type: EventAttemptSucceeded, Address: address, Result: resp})
}

// stale 等待期间钱包断开、地址变化或用户主动断开
func (o *Orchestrator) stale(address string) bool {
	snap := o.wallet.Snapshot()
	o.mu.Lock()
	defer o.mu.Unlock()
	return !snap.Connected || snap.Address != address || o.state.IntentionalDisconnect
}

// abandon 静默放弃本次尝试
func (o *Orchestrator) abandon(address string) {
	logger.Debug("Orchestrator: attempt abandoned", "wallet_address", address)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IntentionalDisconnect {
		o.enterCooldownLocked()
		return
	}
	o.state.Phase = PhaseIdle
	o.state.LastAddress = ""
}

func (o *Orchestrator) onSucceeded(ctx context.Context, address string, resp *types.VerifyResponse) {
	o.mu.Lock()
	if o.state.IntentionalDisconnect {
		// 尝试期间用户已主动断开，丢弃结果
		o.enterCooldownLocked()
		o.mu.Unlock()
		if err := o.auth.Logout(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Orchestrator Error: ", err, "op", "discard session")
		}
		return
	}
	o.state.Phase = PhaseIdle
	o.state.Authenticated = true
	o.user = resp.User
	o.mu.Unlock()

	logger.Info("Orchestrator: authenticated", "wallet_address", address, "is_new_user", resp.IsNewUser)
	if resp.IsNewUser {
		o.notify.Success("Account created", "Welcome to "+o.cfg.PlatformName+"! Your account has been created.")
	} else {
		o.notify.Success("Welcome back", "You are now signed in to "+o.cfg.PlatformName+".")
	}
	o.scheduleRedirect(ctx)

	if o.cfg.OnSettled != nil {
		o.cfg.OnSettled(resp, nil)
	}
}

func (o *Orchestrator) scheduleRedirect(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if o.cfg.RedirectDelay > 0 {
			timer := time.NewTimer(o.cfg.RedirectDelay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}
		o.router.Push(o.cfg.RedirectPath)
	}()
}

func (o *Orchestrator) onFailed(ctx context.Context, address string, err error) {
	logger.Error("Orchestrator Error: ", err, "wallet_address", address)

	o.mu.Lock()
	o.state.Authenticated = false
	o.user = nil
	o.enterCooldownLocked()
	o.mu.Unlock()

	title, body := describeFailure(err)
	o.notify.Error(title, body)

	cleanup := context.WithoutCancel(ctx)
	if clearErr := o.auth.Logout(cleanup); clearErr != nil {
		logger.Error("Orchestrator Error: ", clearErr, "op", "clear session")
	}
	o.wallet.Logout(cleanup)

	if o.cfg.OnSettled != nil {
		o.cfg.OnSettled(nil, err)
	}
}

// enterCooldownLocked 标记主动断开并在冷却结束后恢复，调用方需持有锁
func (o *Orchestrator) enterCooldownLocked() {
	o.state.Phase = PhaseCooldown
	o.state.IntentionalDisconnect = true
	if o.cooldown != nil {
		o.cooldown.Stop()
	}
	o.cooldown = time.AfterFunc(o.cfg.Cooldown, func() {
		o.Handle(context.Background(), Event{Type: EventCooldownElapsed})
	})
}

func (o *Orchestrator) onCooldownElapsed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Phase != PhaseCooldown {
		return
	}
	o.state.Phase = PhaseIdle
	o.state.IntentionalDisconnect = false
	o.state.LastAddress = ""
	logger.Debug("Orchestrator: cooldown elapsed")
}

func (o *Orchestrator) onDisconnected(ctx context.Context) {
	o.mu.Lock()
	o.state.LastAddress = ""
	wasAuthenticated := o.state.Authenticated
	o.state.Authenticated = false
	o.user = nil
	o.mu.Unlock()

	if wasAuthenticated {
		logger.Info("Orchestrator: wallet disconnected, clearing session")
		if err := o.auth.Logout(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Orchestrator Error: ", err, "op", "clear session")
		}
		o.notify.Warning("Wallet disconnected", "You have been signed out.")
	}
}

// Disconnect 用户主动登出
func (o *Orchestrator) Disconnect(ctx context.Context) {
	o.mu.Lock()
	o.state.Authenticated = false
	o.user = nil
	if o.state.Phase == PhaseInFlight {
		// 进行中的尝试会在检查点放弃
		o.state.IntentionalDisconnect = true
	} else {
		o.enterCooldownLocked()
	}
	o.mu.Unlock()

	cleanup := context.WithoutCancel(ctx)
	if err := o.auth.Logout(cleanup); err != nil {
		logger.Error("Orchestrator Error: ", err, "op", "logout")
	}
	o.wallet.Logout(cleanup)
}

// Wait 等待进行中的尝试与跳转结束
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close 停止冷却计时器
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cooldown != nil {
		o.cooldown.Stop()
	}
}

// describeFailure 生成面向用户的错误提示，不包含服务端原始内容
func describeFailure(err error) (string, string) {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return "Signature rejected", "You declined the signature request. Connect your wallet again to retry."
	case errors.Is(err, wallet.ErrNoWallet):
		return "Wallet disconnected", "Your wallet disconnected before signing. Connect it again to retry."
	case authclient.IsUnauthorized(err):
		return "Authentication failed", "Your wallet signature could not be verified. Please try again."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Authentication cancelled", "The sign-in request did not complete. Please try again."
	}
	var apiErr *authclient.APIError
	if errors.As(err, &apiErr) {
		return "Authentication failed", "The authentication server rejected the request. Please try again."
	}
	return "Authentication failed", "Could not reach the authentication server. Please try again."
}
