package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rdm-project/rdm-server/internal/secrets"
	"github.com/rdm-project/rdm-server/internal/store"
)

type Config struct {
	BaseURL        string `mapstructure:"base_url"`
	ServiceAccount string `mapstructure:"service_account"`
	SyncInterval   string `mapstructure:"sync_interval"`
}

// Synchronizer keeps one gateway connection record per device, derived from
// the device's protocol and connectivity descriptor.
//
// Ensure is not race-guarded: two concurrent Ensure calls for the same device
// can each create a gateway record, and whichever reference the device row
// commits last wins while the other record is orphaned. The periodic
// drift-repair sweep does not reclaim orphans.
type Synchronizer struct {
	client         Client
	cipher         *secrets.Cipher
	serviceAccount string
}

func NewSynchronizer(client Client, cipher *secrets.Cipher, serviceAccount string) *Synchronizer {
	return &Synchronizer{
		client:         client,
		cipher:         cipher,
		serviceAccount: serviceAccount,
	}
}

// Ensure returns the device's gateway reference, creating the gateway record
// if the device has none. An existing reference is returned unchanged; Ensure
// never repairs an existing record.
func (s *Synchronizer) Ensure(ctx context.Context, d store.Device) (string, error) {
	if d.GuacamoleConnID != "" {
		return d.GuacamoleConnID, nil
	}

	spec, err := s.specFor(d)
	if err != nil {
		return "", err
	}

	ref, err := s.client.CreateConnection(ctx, spec.Name, spec.ProtocolName(), spec.Parameters())
	if err != nil {
		return "", fmt.Errorf("create gateway connection for device %d: %w", d.ID, err)
	}
	if err := s.client.Grant(ctx, ref, s.serviceAccount); err != nil {
		return "", fmt.Errorf("grant gateway permissions for device %d: %w", d.ID, err)
	}

	slog.Info("Created gateway connection", "device_id", d.ID, "gateway_ref", ref)
	return ref, nil
}

// Synchronize overwrites the gateway record's name and protocol and fully
// replaces its parameter set to match current device state. Without an
// existing reference it behaves as Ensure.
func (s *Synchronizer) Synchronize(ctx context.Context, d store.Device) (string, error) {
	if d.GuacamoleConnID == "" {
		return s.Ensure(ctx, d)
	}

	spec, err := s.specFor(d)
	if err != nil {
		return "", err
	}

	ref := d.GuacamoleConnID
	if err := s.client.UpdateConnection(ctx, ref, spec.Name, spec.ProtocolName()); err != nil {
		return "", fmt.Errorf("update gateway connection for device %d: %w", d.ID, err)
	}
	if err := s.client.ReplaceParameters(ctx, ref, spec.Parameters()); err != nil {
		return "", fmt.Errorf("replace gateway parameters for device %d: %w", d.ID, err)
	}

	slog.Info("Synchronized gateway connection", "device_id", d.ID, "gateway_ref", ref)
	return ref, nil
}

// Remove deletes the gateway record behind ref. An empty ref is a no-op.
func (s *Synchronizer) Remove(ctx context.Context, ref string) error {
	if ref == "" {
		slog.Warn("No gateway reference provided for removal")
		return nil
	}
	if err := s.client.DeleteConnection(ctx, ref); err != nil {
		return fmt.Errorf("delete gateway connection %s: %w", ref, err)
	}
	slog.Info("Deleted gateway connection", "gateway_ref", ref)
	return nil
}

// SessionURL asks the gateway for the client URL of ref on behalf of a user.
func (s *Synchronizer) SessionURL(ctx context.Context, ref string, userID int64) (string, error) {
	return s.client.SessionURL(ctx, ref, userID)
}

func (s *Synchronizer) specFor(d store.Device) (ConnectionSpec, error) {
	password, err := s.cipher.Open(d.PasswordEnc)
	if err != nil {
		return ConnectionSpec{}, fmt.Errorf("decrypt device %d password: %w", d.ID, err)
	}
	privateKey, err := s.cipher.Open(d.PrivateKeyEnc)
	if err != nil {
		return ConnectionSpec{}, fmt.Errorf("decrypt device %d private key: %w", d.ID, err)
	}
	return ConnectionSpec{
		Name:       d.Name,
		Protocol:   d.Protocol,
		Host:       d.Host,
		Port:       d.Port,
		Username:   d.Username,
		Password:   password,
		PrivateKey: privateKey,
	}, nil
}
