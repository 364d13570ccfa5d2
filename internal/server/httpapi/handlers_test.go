package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dkurganov/passvault/internal/cryptox"
	"github.com/dkurganov/passvault/internal/logging"
	"github.com/dkurganov/passvault/internal/server/config"
	"github.com/dkurganov/passvault/internal/server/repositories/inmemory"
	"github.com/dkurganov/passvault/internal/server/services"
	"github.com/dkurganov/passvault/internal/totpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 24 * time.Hour,
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	engine, err := cryptox.NewEngine(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)

	rm := inmemory.NewRepositoryManager()
	ts := services.NewTwoFactorService(nil, rm)
	as := services.NewAuthService(nil, rm, ts, cfg)
	vs := services.NewVaultService(nil, rm, engine, cfg, logger)

	srv := httptest.NewServer(NewServer("", logger, as, ts, vs, engine, cfg.SecretKey).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	fields := map[string]json.RawMessage{}
	if resp.StatusCode != http.StatusNoContent {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(data) > 0 && data[0] == '{' {
			require.NoError(t, json.Unmarshal(data, &fields))
		}
	}
	return resp, fields
}

func fieldString(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	var s string
	require.Contains(t, fields, key)
	require.NoError(t, json.Unmarshal(fields[key], &s))
	return s
}

func signupAndLogin(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/signup", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return fieldString(t, fields, "access_token")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignUp_Duplicate(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/signup", "", map[string]string{
		"email": "a@x.com", "password": "pw1",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// different case, same account
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/signup", "", map[string]string{
		"email": "A@X.com", "password": "pw2",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSignUp_Validation(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/signup", "", map[string]string{
		"email": "a@x.com",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_WrongCredentials(t *testing.T) {
	srv := newTestServer(t)
	signupAndLogin(t, srv, "a@x.com", "pw1")

	resp, fieldsBadPw := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"email": "a@x.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, fieldsNoUser := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"email": "ghost@x.com", "password": "pw1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// identical error body for both failure modes
	assert.Equal(t, fieldString(t, fieldsBadPw, "error"), fieldString(t, fieldsNoUser, "error"))
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)

	// no token
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/vault", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// garbage token
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/vault", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTwoFactorFlow(t *testing.T) {
	srv := newTestServer(t)
	token := signupAndLogin(t, srv, "a@x.com", "pw1")

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/2fa/provision", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	uri := fieldString(t, fields, "provisioning_uri")

	parsed, err := url.Parse(uri)
	require.NoError(t, err)
	secret := parsed.Query().Get("secret")
	require.NotEmpty(t, secret)

	// provisioning twice hands out the same secret
	resp, fields = doJSON(t, http.MethodPost, srv.URL+"/api/2fa/provision", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uri, fieldString(t, fields, "provisioning_uri"))

	// wrong code cannot confirm
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/2fa/confirm", token, map[string]string{"token": "000000"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, err := totpx.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/2fa/confirm", token, map[string]string{"token": code})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// enabled credential rejects re-provisioning
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/2fa/provision", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// login now requires a current code
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"email": "a@x.com", "password": "pw1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, err = totpx.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	resp, fields = doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"email": "a@x.com", "password": "pw1", "token": code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, fieldString(t, fields, "access_token"))
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/signup", "", map[string]string{
		"email": "a@x.com", "password": "pw1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"email": "a@x.com", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refresh := fieldString(t, fields, "refresh_token")

	resp, fields = doJSON(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", map[string]string{
		"refresh_token": refresh,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, refresh, fieldString(t, fields, "refresh_token"))

	// rotation killed the old token
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", map[string]string{
		"refresh_token": refresh,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVaultCRUD(t *testing.T) {
	srv := newTestServer(t)
	token := signupAndLogin(t, srv, "a@x.com", "pw1")

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/vault", token, map[string]string{
		"title": "mail", "username": "bob", "secret": "s3cret", "url": "https://mail.example",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := fieldString(t, fields, "id")
	assert.Equal(t, "s3cret", fieldString(t, fields, "secret"))

	resp, fields = doJSON(t, http.MethodGet, srv.URL+"/api/vault/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mail", fieldString(t, fields, "title"))
	assert.Equal(t, "s3cret", fieldString(t, fields, "secret"))

	resp, fields = doJSON(t, http.MethodPut, srv.URL+"/api/vault/"+id, token, map[string]string{
		"title": "mail2", "secret": "n3w",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mail2", fieldString(t, fields, "title"))
	assert.Equal(t, "n3w", fieldString(t, fields, "secret"))

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/vault/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/vault/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVault_CrossOwner(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := signupAndLogin(t, srv, "alice@x.com", "pw1")
	bobToken := signupAndLogin(t, srv, "bob@x.com", "pw2")

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/vault", aliceToken, map[string]string{
		"title": "mail", "secret": "s3cret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := fieldString(t, fields, "id")

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/vault/"+id, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/vault/"+id, bobToken, map[string]string{
		"title": "stolen", "secret": "x",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/vault/"+id, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	srv := newTestServer(t)
	token := signupAndLogin(t, srv, "a@x.com", "pw1")

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/vault", token, map[string]string{
		"title": "mail", "secret": "s3cret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := fieldString(t, fields, "id")

	resp, fields = doJSON(t, http.MethodPost, srv.URL+"/api/vault/export", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bundle := fieldString(t, fields, "bundle")
	require.NotEmpty(t, bundle)

	// wipe the vault and restore it from the bundle
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/vault/"+id, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, fields = doJSON(t, http.MethodPost, srv.URL+"/api/vault/import", token, map[string]string{
		"bundle": bundle,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", string(fields["imported"]))
	assert.Equal(t, "0", string(fields["failed"]))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/vault", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var items []struct {
		Title  string `json:"title"`
		Secret string `json:"secret"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "mail", items[0].Title)
	assert.Equal(t, "s3cret", items[0].Secret)
}

func TestImport_RequiresSource(t *testing.T) {
	srv := newTestServer(t)
	token := signupAndLogin(t, srv, "a@x.com", "pw1")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/vault/import", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImport_ForeignBundle(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := signupAndLogin(t, srv, "alice@x.com", "pw1")
	bobToken := signupAndLogin(t, srv, "bob@x.com", "pw2")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/vault", aliceToken, map[string]string{
		"title": "mail", "secret": "s3cret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/vault/export", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bundle := fieldString(t, fields, "bundle")

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/vault/import", bobToken, map[string]string{
		"bundle": bundle,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
