package crypto

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageTimestampLayout 与浏览器 toISOString 一致的毫秒精度UTC时间
const MessageTimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	messageHeaderPrefix = "Welcome to "
	messageBody         = "Sign this message to authenticate your wallet. This request will not trigger a blockchain transaction or cost any gas fees."
	walletPrefix        = "Wallet: "
	noncePrefix         = "Nonce: "
	timestampPrefix     = "Timestamp: "
)

var ErrMalformedMessage = errors.New("malformed login message")

// LoginMessage 登录签名消息的结构化内容
type LoginMessage struct {
	Platform      string
	WalletAddress string
	Nonce         string
	IssuedAt      time.Time
}

// BuildLoginMessage 构造登录签名消息，签名与验证必须使用同一份文本
func BuildLoginMessage(platform, walletAddress, nonce string, issuedAt time.Time) string {
	var b strings.Builder
	b.WriteString(messageHeaderPrefix + platform + "!\n\n")
	b.WriteString(messageBody + "\n\n")
	b.WriteString(walletPrefix + walletAddress + "\n")
	b.WriteString(noncePrefix + nonce + "\n")
	b.WriteString(timestampPrefix + issuedAt.UTC().Format(MessageTimestampLayout))
	return b.String()
}

// ParseLoginMessage 解析登录消息
func ParseLoginMessage(message string) (*LoginMessage, error) {
	lines := strings.Split(message, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], messageHeaderPrefix) || !strings.HasSuffix(lines[0], "!") {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedMessage)
	}

	msg := &LoginMessage{
		Platform: strings.TrimSuffix(strings.TrimPrefix(lines[0], messageHeaderPrefix), "!"),
	}
	var timestamp string
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, walletPrefix):
			msg.WalletAddress = strings.TrimPrefix(line, walletPrefix)
		case strings.HasPrefix(line, noncePrefix):
			msg.Nonce = strings.TrimPrefix(line, noncePrefix)
		case strings.HasPrefix(line, timestampPrefix):
			timestamp = strings.TrimPrefix(line, timestampPrefix)
		}
	}

	if msg.WalletAddress == "" || msg.Nonce == "" || timestamp == "" {
		return nil, fmt.Errorf("%w: missing wallet, nonce or timestamp", ErrMalformedMessage)
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp: %v", ErrMalformedMessage, err)
	}
	msg.IssuedAt = issuedAt
	return msg, nil
}

// ValidateTimestamp 消息时间必须在 [now-maxAge, now+maxSkew] 之间
func (m *LoginMessage) ValidateTimestamp(now time.Time, maxAge, maxSkew time.Duration) error {
	age := now.Sub(m.IssuedAt)
	if age < -maxSkew {
		return fmt.Errorf("message timestamp is in the future")
	}
	if age > maxAge {
		return fmt.Errorf("message timestamp expired (older than %s)", maxAge)
	}
	return nil
}
