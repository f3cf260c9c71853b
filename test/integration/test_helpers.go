//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-pharmacy-catalog/internal/app"
	"go-pharmacy-catalog/internal/config"
	"go-pharmacy-catalog/internal/database"
	"go-pharmacy-catalog/internal/model"
)

// newServer boots the full application against TEST_DATABASE_URL with empty
// tables. Tests are skipped when the variable is unset.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	resetTables(t, databaseURL)

	cfg := &config.Config{
		ServerPort:         "0",
		ServerWriteTimeout: 30 * time.Second,
		RequestTimeout:     10 * time.Second,
		StoreDriver:        config.StoreDriverPostgres,
		DatabaseURL:        databaseURL,
		DBMaxConns:         4,
		JWTSecret:          "integration-secret",
		JWTTTL:             time.Hour,
		BcryptCost:         4,
		SignupAllowedRoles: []string{"admin", "customer"},
		CORSOrigins:        []string{"*"},
		RateLimitRPM:       1000,
		AuthRateLimitRPM:   1000,
		UploadRoot:         t.TempDir(),
		MaxUploadSize:      1 << 20,
		AllowedImageTypes:  []string{"image/png", "image/jpeg"},
		ThumbnailSize:      64,
	}

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(application.Close)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return server
}

func resetTables(t *testing.T, databaseURL string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, database.Options{URL: databaseURL, MaxConns: 2})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE users, products`)
	require.NoError(t, err)
}

func doJSON(t *testing.T, method string, url string, payload any, token string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func signupAndLogin(t *testing.T, baseURL string, username string, role string) string {
	t.Helper()

	credentials := map[string]string{"username": username, "password": "integration-pass", "role": role}
	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/auth/signup", credentials, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, baseURL+"/api/auth/login", credentials, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var issued model.IssuedToken
	require.NoError(t, json.Unmarshal(body, &issued))
	require.NotEmpty(t, issued.Token)
	return issued.Token
}
