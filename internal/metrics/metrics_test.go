package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordNonce(t *testing.T) {
	before := testutil.ToFloat64(NonceIssued.WithLabelValues("new"))
	RecordNonce(true)
	assert.Equal(t, before+1, testutil.ToFloat64(NonceIssued.WithLabelValues("new")))

	before = testutil.ToFloat64(NonceIssued.WithLabelValues("existing"))
	RecordNonce(false)
	assert.Equal(t, before+1, testutil.ToFloat64(NonceIssued.WithLabelValues("existing")))
}

func TestRecordVerify(t *testing.T) {
	before := testutil.ToFloat64(VerifyAttempts.WithLabelValues("invalid_nonce"))
	RecordVerify("invalid_nonce")
	assert.Equal(t, before+1, testutil.ToFloat64(VerifyAttempts.WithLabelValues("invalid_nonce")))
}
