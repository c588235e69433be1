package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gavlik-capital/internal/client/tokenstore"
	"gavlik-capital/internal/config"
	"gavlik-capital/internal/types"
	"gavlik-capital/pkg/crypto"
	"gavlik-capital/pkg/logger"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/golang-jwt/jwt/v5"
)

// SignFunc 对任意UTF-8消息签名
type SignFunc func(ctx context.Context, message string) (string, error)

// SignedMessage 签名消息与签名，验证时必须原样提交
type SignedMessage struct {
	Message   string
	Signature string
}

// Config 认证客户端配置
type Config struct {
	BaseURL         string
	PlatformName    string
	Timeout         time.Duration
	NonceMaxRetries int
	Transport       http.RoundTripper
}

// Client 钱包认证客户端，负责 nonce -> 签名 -> 验证 握手与会话存储
type Client struct {
	baseURL  string
	platform string
	http     *http.Client
	store    *tokenstore.Store
	now      func() time.Time

	nonceExecutor failsafe.Executor[*apiResponse]
	executor      failsafe.Executor[*apiResponse]
}

type apiResponse struct {
	status int
	body   []byte
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *types.APIError `json:"error"`
}

func New(cfg Config, store *tokenstore.Store) *Client {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	breaker := circuitbreaker.NewBuilder[*apiResponse]().
		HandleIf(func(resp *apiResponse, err error) bool {
			return err != nil || (resp != nil && resp.status >= http.StatusInternalServerError)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Warn("AuthClient: circuit breaker state change", "from", event.OldState, "to", event.NewState)
		}).
		Build()

	retries := cfg.NonceMaxRetries
	if retries < 0 {
		retries = 0
	}
	retry := retrypolicy.NewBuilder[*apiResponse]().
		HandleIf(func(resp *apiResponse, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && (resp.status >= http.StatusInternalServerError || resp.status == http.StatusTooManyRequests)
		}).
		WithBackoff(100*time.Millisecond, time.Second).
		WithMaxRetries(retries).
		WithJitterFactor(0.1).
		Build()

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		platform: cfg.PlatformName,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &bearerTransport{base: base, store: store},
		},
		store:         store,
		now:           time.Now,
		nonceExecutor: failsafe.With[*apiResponse](retry, breaker),
		executor:      failsafe.With[*apiResponse](breaker),
	}
}

// NewFromConfig 按应用配置创建客户端
func NewFromConfig(cfg *config.Config, store *tokenstore.Store) *Client {
	return New(Config{
		BaseURL:         cfg.Client.APIBaseURL,
		PlatformName:    cfg.Auth.PlatformName,
		Timeout:         cfg.Client.RequestTimeout,
		NonceMaxRetries: cfg.Client.NonceMaxRetries,
	}, store)
}

// RequestNonce 请求一次性nonce
func (c *Client) RequestNonce(ctx context.Context, walletAddress string) (*types.NonceResponse, error) {
	if strings.TrimSpace(walletAddress) == "" {
		return nil, ErrInvalidAddress
	}

	var resp types.NonceResponse
	if err := c.call(ctx, c.nonceExecutor, http.MethodPost, "/auth/wallet/nonce", types.NonceRequest{WalletAddress: walletAddress}, &resp); err != nil {
		return nil, fmt.Errorf("request nonce: %w", err)
	}
	if resp.Nonce == "" {
		return nil, fmt.Errorf("request nonce: %w: empty nonce", ErrInvalidResponse)
	}
	logger.Debug("AuthClient: nonce-requested", "wallet_address", walletAddress, "is_new_user", resp.IsNewUser)
	return &resp, nil
}

// BuildAndSignMessage 构造登录消息并签名，返回的消息需原样用于验证
func (c *Client) BuildAndSignMessage(ctx context.Context, walletAddress, nonce string, sign SignFunc) (*SignedMessage, error) {
	message := crypto.BuildLoginMessage(c.platform, walletAddress, nonce, c.now())
	signature, err := sign(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	logger.Debug("AuthClient: message-signed", "wallet_address", walletAddress)
	return &SignedMessage{
		Message:   message,
		Signature: signature,
	}, nil
}

// Verify 提交签名，成功后才写入令牌和用户数据
func (c *Client) Verify(ctx context.Context, walletAddress, signature, message, nonce string) (*types.VerifyResponse, error) {
	req := types.VerifyRequest{
		WalletAddress: walletAddress,
		Signature:     signature,
		Message:       message,
		Nonce:         nonce,
	}
	var resp types.VerifyResponse
	if err := c.call(ctx, c.executor, http.MethodPost, "/auth/wallet/verify", req, &resp); err != nil {
		return nil, fmt.Errorf("verify signature: %w", err)
	}
	if resp.User == nil || resp.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("verify signature: %w: missing user or tokens", ErrInvalidResponse)
	}

	if err := c.storeSession(ctx, &resp.Tokens, resp.User); err != nil {
		return nil, err
	}
	logger.Debug("AuthClient: verified-and-stored", "wallet_address", resp.User.WalletAddress, "is_new_user", resp.IsNewUser)
	return &resp, nil
}

// Authenticate 完整握手：同一个nonce与同一份消息贯穿始终
func (c *Client) Authenticate(ctx context.Context, walletAddress string, sign SignFunc) (*types.VerifyResponse, error) {
	nonce, err := c.RequestNonce(ctx, walletAddress)
	if err != nil {
		return nil, err
	}
	signed, err := c.BuildAndSignMessage(ctx, walletAddress, nonce.Nonce, sign)
	if err != nil {
		return nil, err
	}
	resp, err := c.Verify(ctx, walletAddress, signed.Signature, signed.Message, nonce.Nonce)
	if err != nil {
		return nil, err
	}
	// verify响应可能不带isNewUser，用nonce阶段的结果补齐
	if nonce.IsNewUser {
		resp.IsNewUser = true
	}
	return resp, nil
}

// Logout 清除本地会话，可重复调用
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		logger.Error("Logout Error: ", err)
		return err
	}
	return nil
}

func (c *Client) CurrentUser(ctx context.Context) *types.User {
	return c.store.GetStoredUser(ctx)
}

// AccessToken 当前访问令牌，没有时返回空串
func (c *Client) AccessToken(ctx context.Context) string {
	tokens := c.store.GetStoredTokens(ctx)
	if tokens == nil {
		return ""
	}
	return tokens.AccessToken
}

// IsAuthenticated 同时存在访问令牌和用户数据，且令牌中的钱包地址（如有）与用户一致
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	tokens := c.store.GetStoredTokens(ctx)
	user := c.store.GetStoredUser(ctx)
	if tokens == nil || user == nil {
		return false
	}
	if wallet := tokenWallet(tokens.AccessToken); wallet != "" {
		return strings.EqualFold(wallet, user.WalletAddress)
	}
	return true
}

// tokenWallet 读取JWT中的钱包地址，不校验签名，非JWT令牌返回空串
func tokenWallet(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	wallet, _ := claims["wallet_address"].(string)
	return wallet
}

// GetProfile 从服务端读取最新用户资料并覆盖本地
func (c *Client) GetProfile(ctx context.Context) (*types.User, error) {
	if c.AccessToken(ctx) == "" {
		return nil, ErrNotAuthenticated
	}
	var resp types.ProfileResponse
	if err := c.call(ctx, c.executor, http.MethodGet, "/auth/wallet/profile", nil, &resp); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return c.replaceUser(ctx, resp.User)
}

// UpdateProfile 部分更新资料，本地用户整体替换为服务端返回值
func (c *Client) UpdateProfile(ctx context.Context, req *types.ProfileUpdateRequest) (*types.User, error) {
	if c.AccessToken(ctx) == "" {
		return nil, ErrNotAuthenticated
	}
	var resp types.ProfileResponse
	if err := c.call(ctx, c.executor, http.MethodPut, "/auth/wallet/profile", req, &resp); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return c.replaceUser(ctx, resp.User)
}

func (c *Client) replaceUser(ctx context.Context, user *types.User) (*types.User, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidResponse)
	}
	if err := c.store.StoreUserData(ctx, user); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	return user, nil
}

// Refresh 使用刷新令牌换取新令牌，服务端拒绝时清除会话
func (c *Client) Refresh(ctx context.Context) (*types.VerifyResponse, error) {
	tokens := c.store.GetStoredTokens(ctx)
	if tokens == nil || tokens.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	var resp types.VerifyResponse
	err := c.call(ctx, c.executor, http.MethodPost, "/auth/wallet/refresh", types.RefreshTokenRequest{RefreshToken: tokens.RefreshToken}, &resp)
	if err != nil {
		if IsUnauthorized(err) {
			_ = c.Logout(ctx)
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if resp.User == nil || resp.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("refresh token: %w: missing user or tokens", ErrInvalidResponse)
	}
	if err := c.storeSession(ctx, &resp.Tokens, resp.User); err != nil {
		return nil, err
	}
	return &resp, nil
}

// storeSession 写入令牌和用户，任一失败则全部回滚
func (c *Client) storeSession(ctx context.Context, tokens *types.WalletAuthTokens, user *types.User) error {
	err := c.store.StoreTokens(ctx, tokens)
	if err == nil {
		err = c.store.StoreUserData(ctx, user)
	}
	if err != nil {
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			logger.Error("AuthClient Error: ", clearErr, "op", "rollback session")
		}
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// call 发送JSON请求并解析 APIResponse.data
func (c *Client) call(ctx context.Context, executor failsafe.Executor[*apiResponse], method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var last *apiResponse
	_, err := executor.WithContext(ctx).Get(func() (*apiResponse, error) {
		last = nil
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		last = &apiResponse{status: resp.StatusCode, body: data}
		return last, nil
	})
	if last == nil {
		if err == nil {
			err = ErrInvalidResponse
		}
		return err
	}
	return decodeResponse(last, out)
}

func decodeResponse(resp *apiResponse, out interface{}) error {
	var env envelope
	decodeErr := json.Unmarshal(resp.body, &env)

	if resp.status < 200 || resp.status >= 300 {
		apiErr := &APIError{StatusCode: resp.status}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, decodeErr)
	}
	if !env.Success || len(env.Data) == 0 {
		return fmt.Errorf("%w: unsuccessful response", ErrInvalidResponse)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
