package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-project/rdm-server/internal/api/http/dto"
)

func TestUserManagement(t *testing.T, router *gin.Engine) {
	adminToken := login(t, router, adminUsername, adminPassword)

	t.Run("create user as admin", func(t *testing.T) {
		user := createUser(t, router, adminToken, "operator1", "password123", "operator")
		assert.Equal(t, "operator1", user.Username)
		assert.Equal(t, "operator", user.Role)
		assert.True(t, user.IsActive)
		assert.NotZero(t, user.ID)
	})

	t.Run("create user with invalid role", func(t *testing.T) {
		body := dto.CreateUserRequest{Username: "badrole", Password: "password123", Role: "superuser"}
		rr := doJSONWithAuth(router, "POST", "/api/users", body, adminToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("create user as non-admin", func(t *testing.T) {
		createUser(t, router, adminToken, "viewer1", "password123", "viewer")
		viewerToken := login(t, router, "viewer1", "password123")

		body := dto.CreateUserRequest{Username: "sneaky", Password: "password123", Role: "viewer"}
		rr := doJSONWithAuth(router, "POST", "/api/users", body, viewerToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("list users with pagination", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/users?page=1&size=2", nil, adminToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.Page[dto.UserResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 2, resp.Size)
		assert.GreaterOrEqual(t, resp.Total, int64(3))
		assert.Len(t, resp.Items, 2)
	})

	t.Run("list users as non-admin", func(t *testing.T) {
		viewerToken := login(t, router, "viewer1", "password123")
		rr := doJSONWithAuth(router, "GET", "/api/users", nil, viewerToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("list users without token", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/users", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("deactivated user cannot login", func(t *testing.T) {
		user := createUser(t, router, adminToken, "leaver", "password123", "viewer")
		_ = login(t, router, "leaver", "password123")

		inactive := false
		body := dto.UpdateUserRequest{IsActive: &inactive}
		rr := doJSONWithAuth(router, "PUT", "/api/users/"+itoa(user.ID), body, adminToken)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(router, "POST", "/api/auth/login", dto.LoginRequest{Username: "leaver", Password: "password123"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("get unknown user", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/users/999999", nil, adminToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
