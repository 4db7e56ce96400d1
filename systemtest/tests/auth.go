package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-project/rdm-server/internal/api/http/dto"
	"github.com/rdm-project/rdm-server/internal/auth"
)

// The bootstrap admin account from the migrations.
const (
	adminUsername = "admin"
	adminPassword = "changeme"
)

func TestAuth(t *testing.T, router *gin.Engine, jwtSecret string) {
	t.Run("login success", func(t *testing.T) {
		body := dto.LoginRequest{Username: adminUsername, Password: adminPassword}
		rr := doJSON(router, "POST", "/api/auth/login", body)

		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.LoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Bearer", resp.Type)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, adminUsername, resp.User.Username)
		assert.Equal(t, "admin", resp.User.Role)

		claims, err := auth.ValidateToken(jwtSecret, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, adminUsername, claims.Username)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		body := dto.LoginRequest{Username: adminUsername, Password: "wrongpassword"}
		rr := doJSON(router, "POST", "/api/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("nonexistent user", func(t *testing.T) {
		body := dto.LoginRequest{Username: "ghost", Password: "password123"}
		rr := doJSON(router, "POST", "/api/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/auth/login", dto.LoginRequest{Username: adminUsername})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("me", func(t *testing.T) {
		token := login(t, router, adminUsername, adminPassword)
		rr := doJSONWithAuth(router, "GET", "/api/auth/me", nil, token)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.UserResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, adminUsername, resp.Username)
		assert.NotNil(t, resp.LastLogin)
	})

	t.Run("me without token", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/auth/me", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func login(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()
	rr := doJSON(router, "POST", "/api/auth/login", dto.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rr.Code, "login as %s failed: %s", username, rr.Body.String())

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Token
}

func createUser(t *testing.T, router *gin.Engine, adminToken, username, password, role string) dto.UserResponse {
	t.Helper()
	body := dto.CreateUserRequest{Username: username, Password: password, Role: role}
	rr := doJSONWithAuth(router, "POST", "/api/users", body, adminToken)
	require.Equal(t, http.StatusCreated, rr.Code, "create user %s failed: %s", username, rr.Body.String())

	var resp dto.UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return doJSONWithAuth(router, method, path, body, "")
}

func doJSONWithAuth(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
