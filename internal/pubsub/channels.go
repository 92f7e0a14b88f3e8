package pubsub

// Channel names are the contract between publishers anywhere in the cluster
// and the update bridge on every instance. One channel per update kind.
const (
	FriendshipUpdatesChannel                  = "friendship.updates"
	FriendStatusUpdatesChannel                = "friend.status.updates"
	BlockUpdatesChannel                       = "block.updates"
	CommunityMemberConnectivityUpdatesChannel = "community.member.connectivity.updates"
	PrivateVoiceChatUpdatesChannel            = "private.voice.chat.updates"
	CommunityVoiceChatUpdatesChannel          = "community.voice.chat.updates"
)

// AllChannels lists every channel the update bridge listens on.
func AllChannels() []string {
	return []string{
		FriendshipUpdatesChannel,
		FriendStatusUpdatesChannel,
		BlockUpdatesChannel,
		CommunityMemberConnectivityUpdatesChannel,
		PrivateVoiceChatUpdatesChannel,
		CommunityVoiceChatUpdatesChannel,
	}
}
