package comms

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gosocial/realtime/internal/types"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetCallCredentials(ctx context.Context, callId string, addresses []string) (map[string]types.Credentials, error) {
	args := m.Called(ctx, callId, addresses)
	if creds, ok := args.Get(0).(map[string]types.Credentials); ok {
		return creds, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) EndCall(ctx context.Context, callId string) ([]string, error) {
	args := m.Called(ctx, callId)
	if users, ok := args.Get(0).([]string); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) EndCallForUser(ctx context.Context, callId, address string) error {
	args := m.Called(ctx, callId, address)
	return args.Error(0)
}

func (m *MockClient) IsUserInCall(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) IsCommunityCallActive(ctx context.Context, communityId string) (bool, error) {
	args := m.Called(ctx, communityId)
	return args.Bool(0), args.Error(1)
}
