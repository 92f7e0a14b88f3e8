package database

import (
	"errors"
	"time"
)

var (
	// ErrDuplicatePendingCall is returned when an insert collides with the
	// unique caller/callee constraints, meaning one of the parties already
	// has a pending call.
	ErrDuplicatePendingCall = errors.New("pending call already exists for one of the parties")
	// ErrNoPendingCall is returned when a lookup finds no matching row.
	ErrNoPendingCall = errors.New("pending call not found")
)

type Repository interface {
	Ping() error
	CreatePendingCall(id, callerAddress, calleeAddress string) (PendingCall, error)
	GetPendingCall(id string) (PendingCall, error)
	GetPendingCallForUsers(addresses ...string) (PendingCall, error)
	DeletePendingCall(id string) (bool, error)
	DeleteExpiredPendingCalls(olderThan time.Time, limit int) ([]PendingCall, error)
	AreFriends(addressA, addressB string) (bool, error)
	GetSocialSettings(addresses []string) (map[string]SocialSettings, error)
	FilterFriendsOf(address string, candidates []string) ([]string, error)
	FilterMembersOfCommunity(communityId string, candidates []string) ([]string, error)
}
