package types

// Profile holds the display fields resolved for a user address. It is the
// enrichment payload attached to presence-style updates before they are
// forwarded to a client.
type Profile struct {
	Address           string `json:"address"`
	Name              string `json:"name"`
	HasClaimedName    bool   `json:"has_claimed_name"`
	ProfilePictureUrl string `json:"profile_picture_url,omitempty"`
}

// Credentials are the per-party connection details issued by the signaling
// service for an accepted call. Each party only ever sees its own.
type Credentials struct {
	ConnectionUrl string `json:"connection_url"`
}

// Presence status values shared by friend status and community member
// connectivity updates.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Friendship actions carried by friendship updates.
const (
	FriendshipRequest = "request"
	FriendshipAccept  = "accept"
	FriendshipReject  = "reject"
	FriendshipCancel  = "cancel"
	FriendshipDelete  = "delete"
)

// Call status values carried by private and community voice chat updates.
const (
	CallRequested = "requested"
	CallAccepted  = "accepted"
	CallRejected  = "rejected"
	CallEnded     = "ended"
	CallExpired   = "expired"
	CallStarted   = "started"
)

// FriendshipUpdate announces a change in the friendship between From and To.
// It is targeted: the bridge delivers it to To if they are attached locally.
type FriendshipUpdate struct {
	Id        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// FriendStatusUpdate announces that Address changed presence. It fans out to
// the online friends of Address that are attached locally.
type FriendStatusUpdate struct {
	Address   string `json:"address"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// BlockUpdate announces that BlockerAddress blocked or unblocked
// BlockedAddress. It is targeted at the blocked user.
type BlockUpdate struct {
	BlockerAddress string `json:"blocker_address"`
	BlockedAddress string `json:"blocked_address"`
	IsBlocked      bool   `json:"is_blocked"`
	Timestamp      int64  `json:"timestamp"`
}

// CommunityMemberConnectivityUpdate announces that MemberAddress changed
// presence within a community. It fans out to the community's members that
// are attached locally.
type CommunityMemberConnectivityUpdate struct {
	CommunityId   string `json:"community_id"`
	MemberAddress string `json:"member_address"`
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"`
}

// PrivateVoiceChatUpdate carries one transition of a private call. The
// CallerAddress and CalleeAddress fields double as identity and routing:
// recipients are derived from the status plus whichever fields are set, so a
// party whose field is omitted from an "ended" update is the one that ended
// the call.
type PrivateVoiceChatUpdate struct {
	CallId        string       `json:"call_id"`
	Status        string       `json:"status"`
	CallerAddress string       `json:"caller_address,omitempty"`
	CalleeAddress string       `json:"callee_address,omitempty"`
	Credentials   *Credentials `json:"credentials,omitempty"`
	Timestamp     int64        `json:"timestamp"`
}

// CommunityVoiceChatUpdate announces that a community call started or ended.
// It fans out to the community's members that are attached locally.
type CommunityVoiceChatUpdate struct {
	CommunityId string `json:"community_id"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
}
