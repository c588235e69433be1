package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gavlik-capital/internal/service/auth"
	"gavlik-capital/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	verifyErr  error
	lastUpdate *types.ProfileUpdateRequest
}

func (s *stubService) RequestNonce(_ context.Context, req *types.NonceRequest) (*types.NonceResponse, error) {
	if req.WalletAddress == "bad" {
		return nil, auth.ErrInvalidAddress
	}
	return &types.NonceResponse{Nonce: "n1", IsNewUser: true}, nil
}

func (s *stubService) Verify(_ context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &types.VerifyResponse{
		User:      &types.User{ID: "u1", WalletAddress: req.WalletAddress},
		Tokens:    types.WalletAuthTokens{AccessToken: "t1", ExpiresIn: 3600},
		IsNewUser: true,
	}, nil
}

func (s *stubService) RefreshToken(_ context.Context, _ *types.RefreshTokenRequest) (*types.VerifyResponse, error) {
	return nil, auth.ErrInvalidToken
}

func (s *stubService) GetProfile(_ context.Context, userID string) (*types.User, error) {
	return &types.User{ID: userID, WalletAddress: "0xabc"}, nil
}

func (s *stubService) UpdateProfile(_ context.Context, userID string, req *types.ProfileUpdateRequest) (*types.User, error) {
	s.lastUpdate = req
	return &types.User{ID: userID, WalletAddress: "0xabc", Username: *req.Username}, nil
}

func (s *stubService) VerifyToken(_ context.Context, token string) (*types.JWTClaims, error) {
	if token != "t1" {
		return nil, auth.ErrInvalidToken
	}
	return &types.JWTClaims{UserID: "u1", WalletAddress: "0xabc", Type: "access"}, nil
}

func newTestRouter(svc auth.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(r *gin.Engine, method, path, body, token string) (*httptest.ResponseRecorder, types.APIResponse) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp types.APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestRequestNonce(t *testing.T) {
	r := newTestRouter(&stubService{})

	w, resp := do(r, http.MethodPost, "/api/v1/auth/wallet/nonce", `{"walletAddress":"0xabc"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"nonce":"n1","isNewUser":true}`, mustJSON(t, resp.Data))

	w, resp = do(r, http.MethodPost, "/api/v1/auth/wallet/nonce", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)

	w, resp = do(r, http.MethodPost, "/api/v1/auth/wallet/nonce", `{"walletAddress":"bad"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_WALLET_ADDRESS", resp.Error.Code)
}

func TestVerify(t *testing.T) {
	body := `{"walletAddress":"0xabc","signature":"0xsig","message":"m","nonce":"n1"}`

	w, resp := do(newTestRouter(&stubService{}), http.MethodPost, "/api/v1/auth/wallet/verify", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, mustJSON(t, resp.Data), `"accessToken":"t1"`)

	w, resp = do(newTestRouter(&stubService{verifyErr: auth.ErrInvalidNonce}), http.MethodPost, "/api/v1/auth/wallet/verify", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_NONCE", resp.Error.Code)

	w, resp = do(newTestRouter(&stubService{verifyErr: assertErr("boom")}), http.MethodPost, "/api/v1/auth/wallet/verify", body, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", resp.Error.Message)
}

func TestProfileRequiresBearer(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc)

	w, _ := do(r, http.MethodPut, "/api/v1/auth/wallet/profile", `{"username":"alice"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := do(r, http.MethodPut, "/api/v1/auth/wallet/profile", `{"username":"alice"}`, "t1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, mustJSON(t, resp.Data), `"username":"alice"`)
	require.NotNil(t, svc.lastUpdate)
	assert.Nil(t, svc.lastUpdate.Bio)

	w, resp = do(r, http.MethodPut, "/api/v1/auth/wallet/profile", `{}`, "t1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)

	w, _ = do(r, http.MethodGet, "/api/v1/auth/wallet/profile", "", "t1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshTokenInvalid(t *testing.T) {
	w, resp := do(newTestRouter(&stubService{}), http.MethodPost, "/api/v1/auth/wallet/refresh", `{"refreshToken":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", resp.Error.Code)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
