package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGrantSource struct {
	mock.Mock
}

func (m *MockGrantSource) DirectGrantLevel(ctx context.Context, userID, deviceID int64) (string, bool, error) {
	args := m.Called(userID, deviceID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockGrantSource) GroupGrantLevels(ctx context.Context, userID, deviceID int64) ([]string, error) {
	args := m.Called(userID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestAuthorizeAdminBypassesGrants(t *testing.T) {
	grants := &MockGrantSource{}
	resolver := NewResolver(grants)

	for _, level := range []Level{LevelView, LevelRead, LevelWrite, LevelControl} {
		ok, err := resolver.Authorize(context.Background(), 1, "admin", 42, level)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	grants.AssertNotCalled(t, "DirectGrantLevel", mock.Anything, mock.Anything)
	grants.AssertNotCalled(t, "GroupGrantLevels", mock.Anything, mock.Anything)
}

func TestAuthorizeDirectGrant(t *testing.T) {
	grants := &MockGrantSource{}
	grants.On("DirectGrantLevel", int64(1), int64(42)).Return("write", true, nil)
	grants.On("GroupGrantLevels", int64(1), int64(42)).Return([]string(nil), nil)
	resolver := NewResolver(grants)

	ok, err := resolver.Authorize(context.Background(), 1, "operator", 42, LevelRead)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.Authorize(context.Background(), 1, "operator", 42, LevelControl)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeGroupGrant(t *testing.T) {
	grants := &MockGrantSource{}
	grants.On("DirectGrantLevel", int64(2), int64(7)).Return("", false, nil)
	grants.On("GroupGrantLevels", int64(2), int64(7)).Return([]string{"view", "write"}, nil)
	resolver := NewResolver(grants)

	ok, err := resolver.Authorize(context.Background(), 2, "viewer", 7, LevelWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.Authorize(context.Background(), 2, "viewer", 7, LevelControl)
	require.NoError(t, err)
	assert.False(t, ok)
}

// A low direct grant must not short-circuit group evaluation.
func TestAuthorizeLowDirectHighGroup(t *testing.T) {
	grants := &MockGrantSource{}
	grants.On("DirectGrantLevel", int64(3), int64(9)).Return("view", true, nil)
	grants.On("GroupGrantLevels", int64(3), int64(9)).Return([]string{"control"}, nil)
	resolver := NewResolver(grants)

	ok, err := resolver.Authorize(context.Background(), 3, "operator", 9, LevelControl)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizeNoGrants(t *testing.T) {
	grants := &MockGrantSource{}
	grants.On("DirectGrantLevel", int64(4), int64(5)).Return("", false, nil)
	grants.On("GroupGrantLevels", int64(4), int64(5)).Return([]string(nil), nil)
	resolver := NewResolver(grants)

	ok, err := resolver.Authorize(context.Background(), 4, "viewer", 5, LevelView)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeSkipsMalformedLevels(t *testing.T) {
	grants := &MockGrantSource{}
	grants.On("DirectGrantLevel", int64(5), int64(6)).Return("banana", true, nil)
	grants.On("GroupGrantLevels", int64(5), int64(6)).Return([]string{"bogus", "read"}, nil)
	resolver := NewResolver(grants)

	ok, err := resolver.Authorize(context.Background(), 5, "operator", 6, LevelRead)
	require.NoError(t, err)
	assert.True(t, ok)
}
