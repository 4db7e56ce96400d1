package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rdm-project/rdm-server/internal/secrets"
	"github.com/rdm-project/rdm-server/internal/store"
)

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

func testCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	cipher, err := secrets.NewCipher(testKey)
	require.NoError(t, err)
	return cipher
}

func TestEnsureReturnsExistingReference(t *testing.T) {
	client := &MockClient{}
	sync := NewSynchronizer(client, testCipher(t), "rdm-service")

	ref, err := sync.Ensure(context.Background(), store.Device{
		ID:              1,
		GuacamoleConnID: "77",
	})
	require.NoError(t, err)
	assert.Equal(t, "77", ref)
	client.AssertNotCalled(t, "CreateConnection", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureCreatesAndGrants(t *testing.T) {
	client := &MockClient{}
	cipher := testCipher(t)
	sync := NewSynchronizer(client, cipher, "rdm-service")

	sealed, err := cipher.Seal("vnc-pass")
	require.NoError(t, err)

	client.On("CreateConnection", "lab-vnc", "vnc", mock.MatchedBy(func(params map[string]string) bool {
		return params["hostname"] == "10.1.1.1" && params["password"] == "vnc-pass"
	})).Return("12", nil)
	client.On("Grant", "12", "rdm-service").Return(nil)

	ref, err := sync.Ensure(context.Background(), store.Device{
		ID:          2,
		Name:        "lab-vnc",
		Protocol:    store.ProtocolVNC,
		Host:        "10.1.1.1",
		Port:        5900,
		PasswordEnc: sealed,
	})
	require.NoError(t, err)
	assert.Equal(t, "12", ref)
	client.AssertExpectations(t)
}

// Repeated Ensure calls on a device that never committed a reference each
// create a fresh gateway record.
func TestEnsureWithoutReferenceIsNotIdempotent(t *testing.T) {
	client := &MockClient{}
	sync := NewSynchronizer(client, testCipher(t), "rdm-service")

	client.On("CreateConnection", "ssh-box", "ssh", mock.Anything).Return("1", nil).Once()
	client.On("CreateConnection", "ssh-box", "ssh", mock.Anything).Return("2", nil).Once()
	client.On("Grant", mock.Anything, "rdm-service").Return(nil)

	device := store.Device{ID: 3, Name: "ssh-box", Protocol: store.ProtocolSSH, Host: "h", Port: 22, Username: "u"}

	first, err := sync.Ensure(context.Background(), device)
	require.NoError(t, err)
	second, err := sync.Ensure(context.Background(), device)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	client.AssertNumberOfCalls(t, "CreateConnection", 2)
}

func TestSynchronizeReplacesParameters(t *testing.T) {
	client := &MockClient{}
	sync := NewSynchronizer(client, testCipher(t), "rdm-service")

	client.On("UpdateConnection", "40", "renamed", "rdp").Return(nil)
	client.On("ReplaceParameters", "40", mock.MatchedBy(func(params map[string]string) bool {
		return params["hostname"] == "new-host" && params["security"] == "any"
	})).Return(nil)

	ref, err := sync.Synchronize(context.Background(), store.Device{
		ID:              4,
		Name:            "renamed",
		Protocol:        store.ProtocolRDP,
		Host:            "new-host",
		Port:            3389,
		Username:        "admin",
		GuacamoleConnID: "40",
	})
	require.NoError(t, err)
	assert.Equal(t, "40", ref)
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "CreateConnection", mock.Anything, mock.Anything, mock.Anything)
}

func TestSynchronizeWithoutReferenceCreates(t *testing.T) {
	client := &MockClient{}
	sync := NewSynchronizer(client, testCipher(t), "rdm-service")

	client.On("CreateConnection", "fresh", "vnc", mock.Anything).Return("9", nil)
	client.On("Grant", "9", "rdm-service").Return(nil)

	ref, err := sync.Synchronize(context.Background(), store.Device{
		ID:       5,
		Name:     "fresh",
		Protocol: store.ProtocolVNC,
		Host:     "h",
		Port:     5900,
	})
	require.NoError(t, err)
	assert.Equal(t, "9", ref)
}

func TestRemoveEmptyReferenceIsNoOp(t *testing.T) {
	client := &MockClient{}
	sync := NewSynchronizer(client, testCipher(t), "rdm-service")

	err := sync.Remove(context.Background(), "")
	require.NoError(t, err)
	client.AssertNotCalled(t, "DeleteConnection", mock.Anything)
}

func TestRemoveDeletesConnection(t *testing.T) {
	client := &MockClient{}
	sync := NewSynchronizer(client, testCipher(t), "rdm-service")

	client.On("DeleteConnection", "31").Return(nil)

	err := sync.Remove(context.Background(), "31")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestEnsureFailsOnUndecryptableCredentials(t *testing.T) {
	client := &MockClient{}
	sync := NewSynchronizer(client, testCipher(t), "rdm-service")

	_, err := sync.Ensure(context.Background(), store.Device{
		ID:          6,
		Name:        "broken",
		Protocol:    store.ProtocolVNC,
		Host:        "h",
		Port:        5900,
		PasswordEnc: "not-base64!!",
	})
	assert.ErrorIs(t, err, secrets.ErrInvalidCiphertext)
	client.AssertNotCalled(t, "CreateConnection", mock.Anything, mock.Anything, mock.Anything)
}
