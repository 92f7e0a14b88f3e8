package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) CreatePendingCall(id, callerAddress, calleeAddress string) (PendingCall, error) {
	args := m.Called(id, callerAddress, calleeAddress)
	return args.Get(0).(PendingCall), args.Error(1)
}

func (m *MockRepository) GetPendingCall(id string) (PendingCall, error) {
	args := m.Called(id)
	return args.Get(0).(PendingCall), args.Error(1)
}

func (m *MockRepository) GetPendingCallForUsers(addresses ...string) (PendingCall, error) {
	args := m.Called(addresses)
	return args.Get(0).(PendingCall), args.Error(1)
}

func (m *MockRepository) DeletePendingCall(id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) DeleteExpiredPendingCalls(olderThan time.Time, limit int) ([]PendingCall, error) {
	args := m.Called(olderThan, limit)
	if calls, ok := args.Get(0).([]PendingCall); ok {
		return calls, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) AreFriends(addressA, addressB string) (bool, error) {
	args := m.Called(addressA, addressB)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) GetSocialSettings(addresses []string) (map[string]SocialSettings, error) {
	args := m.Called(addresses)
	if settings, ok := args.Get(0).(map[string]SocialSettings); ok {
		return settings, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) FilterFriendsOf(address string, candidates []string) ([]string, error) {
	args := m.Called(address, candidates)
	if friends, ok := args.Get(0).([]string); ok {
		return friends, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) FilterMembersOfCommunity(communityId string, candidates []string) ([]string, error) {
	args := m.Called(communityId, candidates)
	if members, ok := args.Get(0).([]string); ok {
		return members, args.Error(1)
	}
	return nil, args.Error(1)
}
