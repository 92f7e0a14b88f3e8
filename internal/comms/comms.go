// Package comms is the boundary to the external call-signaling service. The
// service owns active (accepted) calls; this backend only asks it for
// per-party credentials, busy checks and call teardown.
package comms

import (
	"context"

	"github.com/gosocial/realtime/internal/types"
)

type Client interface {
	// GetCallCredentials issues per-party connection credentials for callId.
	// The returned map is keyed by address.
	GetCallCredentials(ctx context.Context, callId string, addresses []string) (map[string]types.Credentials, error)
	// EndCall ends the active call and returns the addresses still
	// associated with it. An empty result means there was nothing to end.
	EndCall(ctx context.Context, callId string) ([]string, error)
	// EndCallForUser removes a single participant from a call.
	EndCallForUser(ctx context.Context, callId, address string) error
	// IsUserInCall reports whether the user currently participates in any
	// active call.
	IsUserInCall(ctx context.Context, address string) (bool, error)
	// IsCommunityCallActive reports whether a community call is live.
	IsCommunityCallActive(ctx context.Context, communityId string) (bool, error)
}
