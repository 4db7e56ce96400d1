package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rdm-project/rdm-server/internal/apperror"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/gateway"
	"github.com/rdm-project/rdm-server/internal/permissions"
	"github.com/rdm-project/rdm-server/internal/secrets"
	"github.com/rdm-project/rdm-server/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateDevice(ctx context.Context, d store.Device) (store.Device, error) {
	args := m.Called(d)
	return args.Get(0).(store.Device), args.Error(1)
}

func (m *MockStore) GetDevice(ctx context.Context, id int64) (store.Device, error) {
	args := m.Called(id)
	return args.Get(0).(store.Device), args.Error(1)
}

func (m *MockStore) GetActiveDevice(ctx context.Context, id int64) (store.Device, error) {
	args := m.Called(id)
	return args.Get(0).(store.Device), args.Error(1)
}

func (m *MockStore) UpdateDevice(ctx context.Context, d store.Device) (store.Device, error) {
	args := m.Called(d)
	return args.Get(0).(store.Device), args.Error(1)
}

func (m *MockStore) SetDeviceGatewayRef(ctx context.Context, deviceID int64, ref string) error {
	args := m.Called(deviceID, ref)
	return args.Error(0)
}

func (m *MockStore) SoftDeleteDevice(ctx context.Context, id int64) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockStore) ListActiveDevices(ctx context.Context, filter store.DeviceFilter, limit, offset int) ([]store.Device, int64, error) {
	args := m.Called(filter, limit, offset)
	return args.Get(0).([]store.Device), args.Get(1).(int64), args.Error(2)
}

func (m *MockStore) ListProvisionedDevices(ctx context.Context) ([]store.Device, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Device), args.Error(1)
}

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Authorize(ctx context.Context, userID int64, role string, deviceID int64, required permissions.Level) (bool, error) {
	args := m.Called(userID, role, deviceID, required)
	return args.Bool(0), args.Error(1)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(e audit.Entry) {
	m.Called(e)
}

type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateConnection(ctx context.Context, name, protocolName string, params map[string]string) (string, error) {
	args := m.Called(name, protocolName, params)
	return args.String(0), args.Error(1)
}

func (m *MockClient) UpdateConnection(ctx context.Context, ref, name, protocolName string) error {
	args := m.Called(ref, name, protocolName)
	return args.Error(0)
}

func (m *MockClient) ReplaceParameters(ctx context.Context, ref string, params map[string]string) error {
	args := m.Called(ref, params)
	return args.Error(0)
}

func (m *MockClient) DeleteConnection(ctx context.Context, ref string) error {
	args := m.Called(ref)
	return args.Error(0)
}

func (m *MockClient) Grant(ctx context.Context, ref, serviceIdentity string) error {
	args := m.Called(ref, serviceIdentity)
	return args.Error(0)
}

func (m *MockClient) SessionURL(ctx context.Context, ref string, userID int64) (string, error) {
	args := m.Called(ref, userID)
	return args.String(0), args.Error(1)
}

const testKey = "0000000000000000000000000000000000000000000000000000000000000000"

type serviceFixture struct {
	store      *MockStore
	client     *MockClient
	authorizer *MockAuthorizer
	auditor    *MockAuditor
	service    *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cipher, err := secrets.NewCipher(testKey)
	require.NoError(t, err)

	f := &serviceFixture{
		store:      &MockStore{},
		client:     &MockClient{},
		authorizer: &MockAuthorizer{},
		auditor:    &MockAuditor{},
	}
	sync := gateway.NewSynchronizer(f.client, cipher, "rdm-service")
	f.service = NewService(f.store, sync, cipher, f.authorizer, f.auditor)
	return f
}

var admin = auth.Principal{ID: 1, Username: "admin", Role: string(store.RoleAdmin)}
var viewer = auth.Principal{ID: 2, Username: "viewer", Role: string(store.RoleViewer)}

func sshInput() CreateInput {
	return CreateInput{
		Name:     "build-box",
		Host:     "10.0.0.9",
		Port:     22,
		Protocol: store.ProtocolSSH,
		Username: "ci",
		Password: "build-secret",
	}
}

func TestCreateProvisionsGateway(t *testing.T) {
	f := newServiceFixture(t)
	f.store.On("CreateDevice", mock.MatchedBy(func(d store.Device) bool {
		// The password is sealed before it reaches the store.
		return d.Name == "build-box" && d.PasswordEnc != "" && d.PasswordEnc != "build-secret"
	})).Return(store.Device{ID: 7, Name: "build-box", Protocol: store.ProtocolSSH, Host: "10.0.0.9", Port: 22, Username: "ci"}, nil)
	f.client.On("CreateConnection", "build-box", "ssh", mock.Anything).Return("55", nil)
	f.client.On("Grant", "55", "rdm-service").Return(nil)
	f.store.On("SetDeviceGatewayRef", int64(7), "55").Return(nil)
	f.auditor.On("Record", mock.MatchedBy(func(e audit.Entry) bool {
		return e.Action == store.ActionCreate && e.ResourceID == 7
	})).Return()

	device, err := f.service.Create(context.Background(), admin, sshInput(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "55", device.GuacamoleConnID)
	f.store.AssertExpectations(t)
}

// A gateway outage during create is logged and swallowed: the device row is
// persisted, the reference stays empty for the drift sweep to repair.
func TestCreateSucceedsWhenGatewayFails(t *testing.T) {
	f := newServiceFixture(t)
	f.store.On("CreateDevice", mock.Anything).Return(store.Device{ID: 8, Name: "build-box", Protocol: store.ProtocolSSH, Host: "10.0.0.9", Port: 22, Username: "ci"}, nil)
	f.client.On("CreateConnection", "build-box", "ssh", mock.Anything).Return("", errors.New("gateway down"))
	f.auditor.On("Record", mock.Anything).Return()

	device, err := f.service.Create(context.Background(), admin, sshInput(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(8), device.ID)
	assert.Empty(t, device.GuacamoleConnID)
	f.store.AssertNotCalled(t, "SetDeviceGatewayRef", mock.Anything, mock.Anything)
	f.auditor.AssertCalled(t, "Record", mock.Anything)
}

func TestUpdateSucceedsWhenGatewayFails(t *testing.T) {
	f := newServiceFixture(t)
	existing := store.Device{ID: 9, Name: "build-box", Protocol: store.ProtocolSSH, Host: "10.0.0.9", Port: 22, Username: "ci", GuacamoleConnID: "40", IsActive: true}
	f.store.On("GetDevice", int64(9)).Return(existing, nil)
	f.store.On("UpdateDevice", mock.Anything).Return(existing, nil)
	f.client.On("UpdateConnection", "40", "build-box", "ssh").Return(errors.New("gateway down"))
	f.auditor.On("Record", mock.Anything).Return()

	host := "10.0.0.10"
	device, err := f.service.Update(context.Background(), admin, 9, UpdateInput{Host: &host}, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "40", device.GuacamoleConnID)
	f.client.AssertNotCalled(t, "ReplaceParameters", mock.Anything, mock.Anything)
	f.auditor.AssertCalled(t, "Record", mock.Anything)
}

func TestCreateRejectsNonAdmin(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(context.Background(), viewer, sshInput(), "1.2.3.4")
	assert.Equal(t, apperror.KindAuthorization, apperror.KindOf(err))
	f.store.AssertNotCalled(t, "CreateDevice", mock.Anything)
}

func TestListFiltersAreAdminOnly(t *testing.T) {
	f := newServiceFixture(t)
	filter := store.DeviceFilter{Name: "build", Protocol: store.ProtocolSSH}

	f.store.On("ListActiveDevices", filter, 20, 0).Return([]store.Device{}, int64(0), nil).Once()
	_, _, err := f.service.List(context.Background(), admin, filter, 1, 20)
	require.NoError(t, err)

	f.store.On("ListActiveDevices", store.DeviceFilter{}, 20, 0).Return([]store.Device{}, int64(0), nil).Once()
	_, _, err = f.service.List(context.Background(), viewer, filter, 1, 20)
	require.NoError(t, err)
	f.store.AssertExpectations(t)
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name     string
		devName  string
		host     string
		port     int
		protocol store.Protocol
		wantErr  string
	}{
		{"valid rdp", "box", "10.0.0.1", 3389, store.ProtocolRDP, ""},
		{"valid vnc", "box", "10.0.0.1", 5900, store.ProtocolVNC, ""},
		{"valid ssh", "box", "10.0.0.1", 22, store.ProtocolSSH, ""},
		{"missing name", "", "10.0.0.1", 22, store.ProtocolSSH, "device name is required"},
		{"missing host", "box", "", 22, store.ProtocolSSH, "device host is required"},
		{"zero port", "box", "10.0.0.1", 0, store.ProtocolSSH, "device port must be between 1 and 65535"},
		{"port too high", "box", "10.0.0.1", 70000, store.ProtocolSSH, "device port must be between 1 and 65535"},
		{"unknown protocol", "box", "10.0.0.1", 22, store.Protocol("telnet"), `unsupported protocol "telnet"`},
		{"empty protocol", "box", "10.0.0.1", 22, store.Protocol(""), `unsupported protocol ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInput(tt.devName, tt.host, tt.port, tt.protocol)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
