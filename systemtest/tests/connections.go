package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-project/rdm-server/internal/api/http/dto"
)

func TestConnectionLifecycle(t *testing.T, router *gin.Engine) {
	adminToken := login(t, router, adminUsername, adminPassword)

	body := dto.CreateDeviceRequest{
		Name:     "console-host",
		Host:     "10.30.0.2",
		Port:     22,
		Protocol: "ssh",
		Username: "ops",
		Password: "console-secret",
	}
	rr := doJSONWithAuth(router, "POST", "/api/devices", body, adminToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var device dto.DeviceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &device))

	var session dto.InitiateConnectionResponse

	t.Run("initiate", func(t *testing.T) {
		req := dto.InitiateConnectionRequest{DeviceID: device.ID}
		rr := doJSONWithAuth(router, "POST", "/api/connections/initiate", req, adminToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
		assert.Contains(t, session.ConnectionURL, "/#/client/")
		assert.True(t, strings.HasSuffix(session.ConnectionURL, session.GatewayConnID))
		assert.NotZero(t, session.ConnectionLogID)
		assert.Equal(t, "console-host", session.DeviceName)
		assert.Equal(t, "ssh", session.Protocol)
		assert.True(t, session.CanControl)
	})

	t.Run("initiate unknown device", func(t *testing.T) {
		req := dto.InitiateConnectionRequest{DeviceID: 999999}
		rr := doJSONWithAuth(router, "POST", "/api/connections/initiate", req, adminToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("initiate without permission", func(t *testing.T) {
		createUser(t, router, adminToken, "bystander", "password123", "viewer")
		bystanderToken := login(t, router, "bystander", "password123")

		req := dto.InitiateConnectionRequest{DeviceID: device.ID}
		rr := doJSONWithAuth(router, "POST", "/api/connections/initiate", req, bystanderToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("non-owner cannot end session", func(t *testing.T) {
		bystanderToken := login(t, router, "bystander", "password123")
		rr := doJSONWithAuth(router, "POST", "/api/connections/"+itoa(session.ConnectionLogID)+"/end", dto.EndConnectionRequest{}, bystanderToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("end", func(t *testing.T) {
		rr := doJSONWithAuth(router, "POST", "/api/connections/"+itoa(session.ConnectionLogID)+"/end", dto.EndConnectionRequest{}, adminToken)
		assert.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	})

	t.Run("end twice", func(t *testing.T) {
		rr := doJSONWithAuth(router, "POST", "/api/connections/"+itoa(session.ConnectionLogID)+"/end", dto.EndConnectionRequest{}, adminToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "already closed")
	})

	t.Run("end unknown session", func(t *testing.T) {
		rr := doJSONWithAuth(router, "POST", "/api/connections/999999/end", dto.EndConnectionRequest{}, adminToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("own history", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/connections/logs", nil, adminToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.Page[dto.ConnectionLogResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Items)

		var found bool
		for _, l := range resp.Items {
			if l.ID == session.ConnectionLogID {
				found = true
				assert.NotNil(t, l.ConnectionEnd)
				assert.NotNil(t, l.Duration)
				assert.Equal(t, "success", l.Status)
			}
		}
		assert.True(t, found)
	})

	t.Run("device history", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/devices/"+itoa(device.ID)+"/logs", nil, adminToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.Page[dto.ConnectionLogResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Items)
		assert.Equal(t, device.ID, resp.Items[0].DeviceID)
	})

	t.Run("page size cap", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/connections/logs?size=150", nil, adminToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "page size cannot exceed 100")
	})
}
