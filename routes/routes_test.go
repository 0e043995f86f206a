package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/portal-auth/app"
	"github.com/upb/portal-auth/config"
	"github.com/upb/portal-auth/models"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Dependencies) {
	t.Helper()

	deps, err := app.NewDependencies(context.Background(), testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(func() {
		ts.Close()
		_ = deps.Close(context.Background())
	})
	return ts, deps
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

type registerBody struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
	Username   string    `json:"username"`
	UserRole   string    `json:"userRole"`
}

func register(t *testing.T, ts *httptest.Server, email string) {
	t.Helper()
	resp := postJSON(t, ts.URL+"/account/register", registerBody{
		Email: email, FirstName: "Ada", LastName: "Lovelace", Password: "Secret123!",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func login(t *testing.T, ts *httptest.Server, email string) loginResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/account/login", loginBody{Username: email, Password: "Secret123!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body loginResponse
	decode(t, resp, &body)
	return body
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("health check returns healthy", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var body map[string]map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, "healthy", body["data"]["status"])
	})

	t.Run("readiness pings the store", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]map[string]interface{}
		decode(t, resp, &body)
		checks := body["data"]["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["credential_store"])
	})
}

func TestAccountFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	register(t, ts, "student@upb.edu")

	t.Run("duplicate registration", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/account/register", registerBody{
			Email: "STUDENT@upb.edu", FirstName: "Ada", LastName: "Lovelace", Password: "Secret123!",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body struct {
			Errors []string `json:"errors"`
		}
		decode(t, resp, &body)
		assert.NotEmpty(t, body.Errors)
	})

	t.Run("login issues a token for the Users role", func(t *testing.T) {
		body := login(t, ts, "student@upb.edu")

		assert.NotEmpty(t, body.Token)
		assert.Equal(t, "student@upb.edu", body.Username)
		assert.Equal(t, models.RoleUsers, body.UserRole)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), body.Expiration, time.Minute)
	})

	t.Run("wrong password and unknown user answer the same", func(t *testing.T) {
		wrong := postJSON(t, ts.URL+"/account/login", loginBody{Username: "student@upb.edu", Password: "Wrong123!"})
		unknown := postJSON(t, ts.URL+"/account/login", loginBody{Username: "ghost@upb.edu", Password: "Secret123!"})

		assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
		assert.Equal(t, wrong.StatusCode, unknown.StatusCode)

		var wrongBody, unknownBody map[string]string
		decode(t, wrong, &wrongBody)
		decode(t, unknown, &unknownBody)
		assert.Equal(t, wrongBody, unknownBody)
		assert.NotEmpty(t, wrongBody["loginError"])
	})

	t.Run("me returns the token claims", func(t *testing.T) {
		token := login(t, ts, "student@upb.edu").Token

		resp := getWithToken(t, ts.URL+"/account/me", token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		decode(t, resp, &body)
		assert.Equal(t, "student@upb.edu", body.Data["username"])
		assert.Equal(t, models.RoleUsers, body.Data["role"])
		assert.NotEmpty(t, body.Data["tokenId"])
	})

	t.Run("roles require the admin role", func(t *testing.T) {
		token := login(t, ts, "student@upb.edu").Token

		resp := getWithToken(t, ts.URL+"/roles", token)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestAdminListsRoles(t *testing.T) {
	ts, deps := newTestServer(t)
	ctx := context.Background()

	register(t, ts, "admin@upb.edu")
	account, err := deps.Store.FindAccountByUsername(ctx, "admin@upb.edu")
	require.NoError(t, err)
	require.NoError(t, deps.Store.AssignRole(ctx, account.ID, models.RoleAdmin))

	// Roles are ordered by name, so Admin becomes the token role
	body := login(t, ts, "admin@upb.edu")
	require.Equal(t, models.RoleAdmin, body.UserRole)

	resp := getWithToken(t, ts.URL+"/roles", body.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var roles struct {
		Data struct {
			Roles []string `json:"roles"`
		} `json:"data"`
	}
	decode(t, resp, &roles)
	assert.Equal(t, models.DefaultRoles, roles.Data.Roles)
}

func TestProtectedEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	testCases := []struct {
		name           string
		path           string
		token          string
		expectedStatus int
	}{
		{"me without token", "/account/me", "", http.StatusUnauthorized},
		{"me with garbage token", "/account/me", "garbage", http.StatusUnauthorized},
		{"roles without token", "/roles", "", http.StatusUnauthorized},
		{"not found", "/api/v1/nonexistent", "", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := getWithToken(t, ts.URL+tc.path, tc.token)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: GET %s", tc.path)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/account/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

// Test helpers

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		StoreDriver: config.StoreDriverMemory,
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Token: config.TokenConfig{
			Secret:        "0123456789abcdef0123456789abcdef",
			Issuer:        "portal-auth-test",
			Audience:      "portal-test",
			ExpiryMinutes: 30,
		},
		Password: config.PasswordConfig{
			MinLength:              6,
			RequireDigit:           true,
			RequireLowercase:       true,
			RequireUppercase:       true,
			RequireNonAlphanumeric: true,
			BcryptCost:             bcrypt.MinCost,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}
