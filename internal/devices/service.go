package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rdm-project/rdm-server/internal/apperror"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/gateway"
	"github.com/rdm-project/rdm-server/internal/permissions"
	"github.com/rdm-project/rdm-server/internal/secrets"
	"github.com/rdm-project/rdm-server/internal/store"
)

// Store is the slice of the relational store device management needs.
type Store interface {
	CreateDevice(ctx context.Context, d store.Device) (store.Device, error)
	GetDevice(ctx context.Context, id int64) (store.Device, error)
	GetActiveDevice(ctx context.Context, id int64) (store.Device, error)
	UpdateDevice(ctx context.Context, d store.Device) (store.Device, error)
	SetDeviceGatewayRef(ctx context.Context, deviceID int64, ref string) error
	SoftDeleteDevice(ctx context.Context, id int64) error
	ListActiveDevices(ctx context.Context, filter store.DeviceFilter, limit, offset int) ([]store.Device, int64, error)
	ListProvisionedDevices(ctx context.Context) ([]store.Device, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, userID int64, role string, deviceID int64, required permissions.Level) (bool, error)
}

type Auditor interface {
	Record(e audit.Entry)
}

// Service owns device CRUD. Gateway provisioning during create/update/delete
// is best-effort: a gateway failure is logged and the device mutation still
// succeeds. Drift is repaired by the periodic sweep or the next synchronize.
type Service struct {
	store        Store
	synchronizer *gateway.Synchronizer
	cipher       *secrets.Cipher
	authorizer   Authorizer
	recorder     Auditor
}

func NewService(st Store, sync *gateway.Synchronizer, cipher *secrets.Cipher, authorizer Authorizer, recorder Auditor) *Service {
	return &Service{
		store:        st,
		synchronizer: sync,
		cipher:       cipher,
		authorizer:   authorizer,
		recorder:     recorder,
	}
}

type CreateInput struct {
	Name        string
	Description string
	Host        string
	Port        int
	Protocol    store.Protocol
	Username    string
	Password    string
	PrivateKey  string
	Tags        []string
}

type UpdateInput struct {
	Name        *string
	Description *string
	Host        *string
	Port        *int
	Protocol    *store.Protocol
	Username    *string
	Password    *string
	PrivateKey  *string
	Tags        []string
	IsActive    *bool
}

func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput, clientIP string) (store.Device, error) {
	if !p.IsAdmin() {
		return store.Device{}, apperror.Authorizationf("only admins can create devices")
	}
	if err := validateInput(in.Name, in.Host, in.Port, in.Protocol); err != nil {
		return store.Device{}, err
	}

	passwordEnc, err := s.cipher.Seal(in.Password)
	if err != nil {
		return store.Device{}, fmt.Errorf("encrypt password: %w", err)
	}
	privateKeyEnc, err := s.cipher.Seal(in.PrivateKey)
	if err != nil {
		return store.Device{}, fmt.Errorf("encrypt private key: %w", err)
	}

	device, err := s.store.CreateDevice(ctx, store.Device{
		Name:          in.Name,
		Description:   in.Description,
		Host:          in.Host,
		Port:          in.Port,
		Protocol:      in.Protocol,
		Username:      in.Username,
		PasswordEnc:   passwordEnc,
		PrivateKeyEnc: privateKeyEnc,
		Tags:          in.Tags,
		CreatedBy:     &p.ID,
	})
	if err != nil {
		return store.Device{}, err
	}

	// Best-effort: device creation stands even if provisioning fails.
	if ref, err := s.synchronizer.Ensure(ctx, device); err != nil {
		slog.Error("Failed to create gateway connection for device", "device_id", device.ID, "error", err)
	} else if err := s.store.SetDeviceGatewayRef(ctx, device.ID, ref); err != nil {
		slog.Error("Failed to persist gateway reference", "device_id", device.ID, "error", err)
	} else {
		device.GuacamoleConnID = ref
	}

	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionCreate,
		ResourceType: "device",
		ResourceID:   device.ID,
		Details:      map[string]any{"name": device.Name, "host": device.Host},
		IPAddress:    clientIP,
	})

	return device, nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, in UpdateInput, clientIP string) (store.Device, error) {
	if !p.IsAdmin() {
		return store.Device{}, apperror.Authorizationf("only admins can update devices")
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return store.Device{}, apperror.NotFound("Device", id)
		}
		return store.Device{}, err
	}

	if in.Name != nil {
		device.Name = *in.Name
	}
	if in.Description != nil {
		device.Description = *in.Description
	}
	if in.Host != nil {
		device.Host = *in.Host
	}
	if in.Port != nil {
		device.Port = *in.Port
	}
	if in.Protocol != nil {
		device.Protocol = *in.Protocol
	}
	if in.Username != nil {
		device.Username = *in.Username
	}
	if in.Password != nil {
		enc, err := s.cipher.Seal(*in.Password)
		if err != nil {
			return store.Device{}, fmt.Errorf("encrypt password: %w", err)
		}
		device.PasswordEnc = enc
	}
	if in.PrivateKey != nil {
		enc, err := s.cipher.Seal(*in.PrivateKey)
		if err != nil {
			return store.Device{}, fmt.Errorf("encrypt private key: %w", err)
		}
		device.PrivateKeyEnc = enc
	}
	if in.Tags != nil {
		device.Tags = in.Tags
	}
	if in.IsActive != nil {
		device.IsActive = *in.IsActive
	}

	if err := validateInput(device.Name, device.Host, device.Port, device.Protocol); err != nil {
		return store.Device{}, err
	}

	device, err = s.store.UpdateDevice(ctx, device)
	if err != nil {
		return store.Device{}, err
	}

	// Best-effort resync of the gateway record against the new descriptor.
	if ref, err := s.synchronizer.Synchronize(ctx, device); err != nil {
		slog.Error("Failed to synchronize gateway connection for device", "device_id", device.ID, "error", err)
	} else if device.GuacamoleConnID == "" {
		if err := s.store.SetDeviceGatewayRef(ctx, device.ID, ref); err != nil {
			slog.Error("Failed to persist gateway reference", "device_id", device.ID, "error", err)
		} else {
			device.GuacamoleConnID = ref
		}
	}

	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionUpdate,
		ResourceType: "device",
		ResourceID:   device.ID,
		Details:      map[string]any{"name": device.Name},
		IPAddress:    clientIP,
	})

	return device, nil
}

// Delete soft-deletes a device after removing its gateway record. The gateway
// removal is best-effort; the soft delete always proceeds.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64, clientIP string) error {
	if !p.IsAdmin() {
		return apperror.Authorizationf("only admins can delete devices")
	}

	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return apperror.NotFound("Device", id)
		}
		return err
	}

	if device.GuacamoleConnID != "" {
		if err := s.synchronizer.Remove(ctx, device.GuacamoleConnID); err != nil {
			slog.Error("Failed to delete gateway connection", "device_id", id, "gateway_ref", device.GuacamoleConnID, "error", err)
		}
	}

	if err := s.store.SoftDeleteDevice(ctx, id); err != nil {
		return err
	}

	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionDelete,
		ResourceType: "device",
		ResourceID:   id,
		Details:      map[string]any{"name": device.Name},
		IPAddress:    clientIP,
	})

	return nil
}

// Get returns a device the principal may see. A device the principal has no
// view grant on reads as not-found; its existence is not leaked.
func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (store.Device, error) {
	device, err := s.store.GetActiveDevice(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return store.Device{}, apperror.NotFound("Device", id)
		}
		return store.Device{}, err
	}

	allowed, err := s.authorizer.Authorize(ctx, p.ID, p.Role, id, permissions.LevelView)
	if err != nil {
		return store.Device{}, fmt.Errorf("authorize: %w", err)
	}
	if !allowed {
		return store.Device{}, apperror.NotFound("Device", id)
	}
	return device, nil
}

func (s *Service) List(ctx context.Context, p auth.Principal, filter store.DeviceFilter, page, size int) ([]store.Device, int64, error) {
	// Name and protocol filters are an admin affordance; other callers always
	// get the unfiltered active listing.
	if !p.IsAdmin() {
		filter = store.DeviceFilter{}
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		return nil, 0, apperror.Validationf("page size cannot exceed 100")
	}
	if page < 1 {
		page = 1
	}
	return s.store.ListActiveDevices(ctx, filter, size, (page-1)*size)
}

// RepairGatewayDrift re-synchronizes every provisioned device's gateway
// record. Run on a schedule so configuration drift heals without waiting for
// the next device update.
func (s *Service) RepairGatewayDrift(ctx context.Context) {
	devices, err := s.store.ListProvisionedDevices(ctx)
	if err != nil {
		slog.Error("Gateway drift sweep: listing devices failed", "error", err)
		return
	}
	for _, d := range devices {
		if _, err := s.synchronizer.Synchronize(ctx, d); err != nil {
			slog.Warn("Gateway drift sweep: synchronize failed", "device_id", d.ID, "error", err)
		}
	}
	slog.Debug("Gateway drift sweep complete", "devices", len(devices))
}

func validateInput(name, host string, port int, protocol store.Protocol) error {
	if name == "" {
		return apperror.Validationf("device name is required")
	}
	if host == "" {
		return apperror.Validationf("device host is required")
	}
	if port <= 0 || port > 65535 {
		return apperror.Validationf("device port must be between 1 and 65535")
	}
	switch protocol {
	case store.ProtocolRDP, store.ProtocolVNC, store.ProtocolSSH:
		return nil
	default:
		return apperror.Validationf("unsupported protocol %q", protocol)
	}
}
