package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NonceIssued 已签发的nonce数量
	NonceIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavlik_auth_nonce_issued_total",
			Help: "The total number of login nonces issued",
		},
		[]string{"user_type"}, // new, existing
	)

	// VerifyAttempts 签名验证结果
	VerifyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavlik_auth_verify_total",
			Help: "The total number of wallet signature verifications",
		},
		[]string{"result"}, // success, invalid_nonce, invalid_signature, invalid_message, error
	)

	// UsersCreated 首次登录创建的用户数
	UsersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gavlik_auth_users_created_total",
		Help: "The total number of users created on first wallet login",
	})

	// TokenRefreshes 令牌刷新结果
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavlik_auth_token_refresh_total",
			Help: "The total number of token refresh requests",
		},
		[]string{"result"},
	)

	// VerifyDuration 签名验证耗时
	VerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gavlik_auth_verify_duration_seconds",
		Help:    "Time taken to verify a wallet login",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordVerify 记录一次签名验证结果
func RecordVerify(result string) {
	VerifyAttempts.WithLabelValues(result).Inc()
}

// RecordNonce 记录一次nonce签发
func RecordNonce(isNewUser bool) {
	if isNewUser {
		NonceIssued.WithLabelValues("new").Inc()
		return
	}
	NonceIssued.WithLabelValues("existing").Inc()
}

// RecordRefresh 记录一次令牌刷新结果
func RecordRefresh(result string) {
	TokenRefreshes.WithLabelValues(result).Inc()
}
