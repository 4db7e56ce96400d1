package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rdm-project/rdm-server/internal/apperror"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/permissions"
	"github.com/rdm-project/rdm-server/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the slice of the relational store the broker needs.
type Store interface {
	GetActiveDevice(ctx context.Context, id int64) (store.Device, error)
	SetDeviceGatewayRef(ctx context.Context, deviceID int64, ref string) error
	CreateSessionLog(ctx context.Context, l store.SessionLog) (store.SessionLog, error)
	GetSessionLog(ctx context.Context, id int64) (store.SessionLog, error)
	CloseSessionLog(ctx context.Context, id int64, end time.Time, durationSec int, status store.SessionStatus) error
	MarkSessionLogFailed(ctx context.Context, id int64) error
	ListSessionLogsByUser(ctx context.Context, userID int64, limit, offset int) ([]store.SessionLog, int64, error)
	ListSessionLogsByDevice(ctx context.Context, deviceID int64, limit, offset int) ([]store.SessionLog, int64, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, userID int64, role string, deviceID int64, required permissions.Level) (bool, error)
}

// Gateway is the synchronizer surface the broker uses during initiation.
type Gateway interface {
	Ensure(ctx context.Context, d store.Device) (string, error)
	SessionURL(ctx context.Context, ref string, userID int64) (string, error)
}

type Auditor interface {
	Record(e audit.Entry)
}

// Broker orchestrates the remote-session lifecycle: authorize, provision the
// gateway record, issue the session URL, and keep the session log entry
// correct through open and close.
type Broker struct {
	store      Store
	authorizer Authorizer
	gateway    Gateway
	auditor    Auditor
}

func NewBroker(st Store, authorizer Authorizer, gw Gateway, auditor Auditor) *Broker {
	return &Broker{
		store:      st,
		authorizer: authorizer,
		gateway:    gw,
		auditor:    auditor,
	}
}

type InitiateResult struct {
	ConnectionURL string
	SessionLogID  int64
	GatewayRef    string
	DeviceName    string
	Protocol      store.Protocol
	CanControl    bool
}

// Initiate starts a remote session against a device on behalf of a principal.
// The session log entry is created optimistically with status success; if URL
// issuance then fails, the entry is marked failed and kept as a failure record.
func (b *Broker) Initiate(ctx context.Context, p auth.Principal, deviceID int64, clientIP, userAgent string) (InitiateResult, error) {
	slog.Info("Initiating connection", "device_id", deviceID, "user_id", p.ID, "client_ip", clientIP)

	if deviceID <= 0 {
		return InitiateResult{}, apperror.Validationf("invalid device ID")
	}

	device, err := b.store.GetActiveDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return InitiateResult{}, apperror.NotFound("Device", deviceID)
		}
		return InitiateResult{}, fmt.Errorf("load device: %w", err)
	}

	if err := validateDeviceConfig(device); err != nil {
		return InitiateResult{}, err
	}

	allowed, err := b.authorizer.Authorize(ctx, p.ID, p.Role, deviceID, permissions.LevelView)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("authorize: %w", err)
	}
	if !allowed {
		slog.Warn("Connection attempt without permission", "user_id", p.ID, "device_id", deviceID)
		return InitiateResult{}, apperror.Authorizationf("you do not have permission to access this device")
	}

	// Control determines interactivity only; view-only callers still get a
	// session, read-only by convention at the gateway layer.
	canControl, err := b.authorizer.Authorize(ctx, p.ID, p.Role, deviceID, permissions.LevelControl)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("authorize control: %w", err)
	}

	ref := device.GuacamoleConnID
	if ref == "" {
		slog.Info("Device has no gateway connection, creating one", "device_id", deviceID)
		ref, err = b.gateway.Ensure(ctx, device)
		if err != nil {
			slog.Error("Failed to create gateway connection", "device_id", deviceID, "error", err)
			return InitiateResult{}, apperror.Validationf("failed to create connection: %v", err)
		}
		if err := b.store.SetDeviceGatewayRef(ctx, deviceID, ref); err != nil {
			return InitiateResult{}, fmt.Errorf("persist gateway ref: %w", err)
		}
	}

	entry, err := b.store.CreateSessionLog(ctx, store.SessionLog{
		UserID:          p.ID,
		DeviceID:        deviceID,
		ConnectionStart: time.Now(),
		Status:          store.SessionSuccess,
		IPAddress:       clientIP,
		UserAgent:       userAgent,
	})
	if err != nil {
		return InitiateResult{}, fmt.Errorf("create session log: %w", err)
	}

	url, err := b.gateway.SessionURL(ctx, ref, p.ID)
	if err != nil {
		slog.Error("Failed to build session URL", "device_id", deviceID, "error", err)
		if markErr := b.store.MarkSessionLogFailed(ctx, entry.ID); markErr != nil {
			slog.Error("Failed to mark session log failed", "session_log_id", entry.ID, "error", markErr)
		}
		return InitiateResult{}, apperror.Validationf("failed to generate connection URL: %v", err)
	}

	b.auditor.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionConnect,
		ResourceType: "connection",
		ResourceID:   entry.ID,
		Details: map[string]any{
			"deviceId":   deviceID,
			"deviceName": device.Name,
			"protocol":   string(device.Protocol),
		},
		IPAddress: clientIP,
	})

	slog.Info("Connection initiated", "session_log_id", entry.ID, "device_id", deviceID)

	return InitiateResult{
		ConnectionURL: url,
		SessionLogID:  entry.ID,
		GatewayRef:    ref,
		DeviceName:    device.Name,
		Protocol:      device.Protocol,
		CanControl:    canControl,
	}, nil
}

// End closes an open session log entry: end time now, duration in whole
// seconds, final status. A closed entry is immutable; a second End fails.
func (b *Broker) End(ctx context.Context, p auth.Principal, sessionLogID int64, finalStatus store.SessionStatus) error {
	slog.Info("Ending session", "session_log_id", sessionLogID, "status", finalStatus)

	if sessionLogID <= 0 {
		return apperror.Validationf("invalid connection log ID")
	}

	entry, err := b.store.GetSessionLog(ctx, sessionLogID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return apperror.NotFound("ConnectionLog", sessionLogID)
		}
		return fmt.Errorf("load session log: %w", err)
	}

	if !p.IsAdmin() && entry.UserID != p.ID {
		slog.Warn("Attempt to end session owned by another user",
			"user_id", p.ID, "session_log_id", sessionLogID, "owner_id", entry.UserID)
		return apperror.Authorizationf("you do not have permission to end this connection")
	}

	if entry.ConnectionEnd != nil {
		return apperror.Validationf("connection log %d is already closed", sessionLogID)
	}

	if finalStatus == "" {
		finalStatus = store.SessionSuccess
	}
	switch finalStatus {
	case store.SessionSuccess, store.SessionFailed, store.SessionTimeout:
	default:
		return apperror.Validationf("invalid session status %q", finalStatus)
	}

	end := time.Now()
	duration := int(end.Sub(entry.ConnectionStart).Seconds())
	if err := b.store.CloseSessionLog(ctx, sessionLogID, end, duration, finalStatus); err != nil {
		if errors.Is(err, store.ErrSessionClosed) {
			return apperror.Validationf("connection log %d is already closed", sessionLogID)
		}
		return fmt.Errorf("close session log: %w", err)
	}

	b.auditor.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionLogout,
		ResourceType: "connection",
		ResourceID:   sessionLogID,
		Details: map[string]any{
			"deviceId": entry.DeviceID,
			"status":   string(finalStatus),
			"duration": duration,
		},
		IPAddress: entry.IPAddress,
	})

	slog.Info("Session ended", "session_log_id", sessionLogID, "duration_seconds", duration, "status", finalStatus)
	return nil
}

// ListForUser returns the principal's own session history, newest first.
func (b *Broker) ListForUser(ctx context.Context, p auth.Principal, page, size int) ([]store.SessionLog, int64, error) {
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, 0, err
	}
	return b.store.ListSessionLogsByUser(ctx, p.ID, limit, offset)
}

// ListForDevice returns a device's session history. Non-admins additionally
// need view permission on the device.
func (b *Broker) ListForDevice(ctx context.Context, p auth.Principal, deviceID int64, page, size int) ([]store.SessionLog, int64, error) {
	if deviceID <= 0 {
		return nil, 0, apperror.Validationf("invalid device ID")
	}
	limit, offset, err := pageBounds(page, size)
	if err != nil {
		return nil, 0, err
	}

	if _, err := b.store.GetActiveDevice(ctx, deviceID); err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return nil, 0, apperror.NotFound("Device", deviceID)
		}
		return nil, 0, fmt.Errorf("load device: %w", err)
	}

	allowed, err := b.authorizer.Authorize(ctx, p.ID, p.Role, deviceID, permissions.LevelView)
	if err != nil {
		return nil, 0, fmt.Errorf("authorize: %w", err)
	}
	if !allowed {
		slog.Warn("Attempt to view device logs without permission", "user_id", p.ID, "device_id", deviceID)
		return nil, 0, apperror.Authorizationf("you do not have permission to view logs for this device")
	}

	return b.store.ListSessionLogsByDevice(ctx, deviceID, limit, offset)
}

func pageBounds(page, size int) (limit, offset int, err error) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		return 0, 0, apperror.Validationf("page size cannot exceed %d", maxPageSize)
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size, nil
}

// validateDeviceConfig checks completeness of a device's connectivity
// descriptor against its protocol before any gateway or log mutation.
func validateDeviceConfig(d store.Device) error {
	if d.Host == "" {
		return apperror.Validationf("device host is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return apperror.Validationf("device port must be between 1 and 65535")
	}

	switch d.Protocol {
	case store.ProtocolRDP:
		if d.Username == "" {
			return apperror.Validationf("username is required for RDP connections")
		}
	case store.ProtocolVNC:
		// VNC may run without credentials.
	case store.ProtocolSSH:
		hasPassword := d.Username != "" && d.PasswordEnc != ""
		hasKey := d.PrivateKeyEnc != ""
		if !hasPassword && !hasKey {
			return apperror.Validationf("SSH connections require either username/password or private key")
		}
	default:
		return apperror.Validationf("device protocol is required")
	}
	return nil
}
