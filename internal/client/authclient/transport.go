package authclient

import (
	"net/http"

	"gavlik-capital/internal/client/tokenstore"
)

// bearerTransport 每次请求时从令牌存储读取访问令牌
type bearerTransport struct {
	base  http.RoundTripper
	store *tokenstore.Store
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}
	tokens := t.store.GetStoredTokens(req.Context())
	if tokens == nil {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	return t.base.RoundTrip(clone)
}
