package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateNonce 生成32位十六进制随机nonce
func GenerateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
