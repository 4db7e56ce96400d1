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

func TestDeviceAccess(t *testing.T, router *gin.Engine) {
	adminToken := login(t, router, adminUsername, adminPassword)

	createUser(t, router, adminToken, "devviewer", "password123", "viewer")
	viewerToken := login(t, router, "devviewer", "password123")

	var device dto.DeviceResponse

	t.Run("create device as admin", func(t *testing.T) {
		body := dto.CreateDeviceRequest{
			Name:     "build-server",
			Host:     "10.20.0.4",
			Port:     22,
			Protocol: "ssh",
			Username: "ci",
			Password: "build-secret",
			Tags:     []string{"ci", "linux"},
		}
		rr := doJSONWithAuth(router, "POST", "/api/devices", body, adminToken)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &device))
		assert.Equal(t, "build-server", device.Name)
		assert.Equal(t, "ssh", device.Protocol)
		assert.True(t, device.IsActive)

		// Credential material never appears in responses.
		assert.NotContains(t, rr.Body.String(), "build-secret")
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("create device as non-admin", func(t *testing.T) {
		body := dto.CreateDeviceRequest{Name: "rogue", Host: "h", Port: 22, Protocol: "ssh", Username: "u"}
		rr := doJSONWithAuth(router, "POST", "/api/devices", body, viewerToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("create device with bad port", func(t *testing.T) {
		body := dto.CreateDeviceRequest{Name: "badport", Host: "h", Port: 99999, Protocol: "ssh", Username: "u"}
		rr := doJSONWithAuth(router, "POST", "/api/devices", body, adminToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ungranted device reads as not found", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/devices/"+itoa(device.ID), nil, viewerToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("granted viewer can read device", func(t *testing.T) {
		var viewer dto.UserResponse
		rr := doJSONWithAuth(router, "GET", "/api/auth/me", nil, viewerToken)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &viewer))

		grant := dto.DirectGrantRequest{UserID: viewer.ID, Permission: "view"}
		rr = doJSONWithAuth(router, "POST", "/api/devices/"+itoa(device.ID)+"/permissions/users", grant, adminToken)
		require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

		rr = doJSONWithAuth(router, "GET", "/api/devices/"+itoa(device.ID), nil, viewerToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.DeviceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, device.ID, resp.ID)
	})

	t.Run("invalid permission level", func(t *testing.T) {
		grant := dto.DirectGrantRequest{UserID: 1, Permission: "owner"}
		rr := doJSONWithAuth(router, "POST", "/api/devices/"+itoa(device.ID)+"/permissions/users", grant, adminToken)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list devices with name filter", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", "/api/devices?name=build", nil, adminToken)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.Page[dto.DeviceResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Items)
		assert.Equal(t, "build-server", resp.Items[0].Name)
	})

	t.Run("update device", func(t *testing.T) {
		desc := "primary CI runner"
		body := dto.UpdateDeviceRequest{Description: &desc}
		rr := doJSONWithAuth(router, "PUT", "/api/devices/"+itoa(device.ID), body, adminToken)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp dto.DeviceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, desc, resp.Description)
	})

	t.Run("delete device", func(t *testing.T) {
		body := dto.CreateDeviceRequest{Name: "ephemeral", Host: "10.20.0.9", Port: 5900, Protocol: "vnc"}
		rr := doJSONWithAuth(router, "POST", "/api/devices", body, adminToken)
		require.Equal(t, http.StatusCreated, rr.Code)

		var created dto.DeviceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

		rr = doJSONWithAuth(router, "DELETE", "/api/devices/"+itoa(created.ID), nil, adminToken)
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = doJSONWithAuth(router, "GET", "/api/devices/"+itoa(created.ID), nil, adminToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
