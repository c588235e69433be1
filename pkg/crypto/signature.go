package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrSignatureMismatch      = errors.New("signature does not match wallet address")
)

// ValidateEthereumAddress 校验0x开头的40位十六进制地址
func ValidateEthereumAddress(address string) bool {
	if len(address) != 42 || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return false
	}
	return common.IsHexAddress(address)
}

// NormalizeAddress 地址统一为小写，作为用户的唯一标识
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ChecksumAddress 返回EIP-55校验格式地址
func ChecksumAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// HashMessage EIP-191 personal_sign 哈希
func HashMessage(message string) []byte {
	return accounts.TextHash([]byte(message))
}

// SignMessage 使用私钥对消息做personal_sign签名，V为27/28
func SignMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := ethcrypto.Sign(HashMessage(message), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// AddressFromKey 私钥对应的小写地址
func AddressFromKey(key *ecdsa.PrivateKey) string {
	return NormalizeAddress(ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
}

// RecoverAddress 从签名中恢复签名者地址（小写）
func RecoverAddress(message, signature string) (string, error) {
	raw := strings.TrimSpace(signature)
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		raw = "0x" + raw
	}
	sig, err := hexutil.Decode("0x" + raw[2:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignatureFormat, err)
	}
	if len(sig) != ethcrypto.SignatureLength {
		return "", fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignatureFormat, ethcrypto.SignatureLength, len(sig))
	}

	// 钱包返回的V为27/28，go-ethereum要求0/1
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("%w: invalid recovery id %d", ErrInvalidSignatureFormat, sig[64])
	}

	pubKey, err := ethcrypto.SigToPub(HashMessage(message), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}
	return NormalizeAddress(ethcrypto.PubkeyToAddress(*pubKey).Hex()), nil
}

// VerifySignature 校验签名是否由address签出
func VerifySignature(message, signature, address string) error {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered, address) {
		return ErrSignatureMismatch
	}
	return nil
}
