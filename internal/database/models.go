package database

import (
	"time"
)

// PendingCall is a requested private call that has not been accepted,
// rejected, ended or expired yet. The row's existence is the requested
// state; every transition out of it deletes the row.
type PendingCall struct {
	Id            string
	CallerAddress string
	CalleeAddress string
	CreatedAt     time.Time
}

// Values for SocialSettings.VoiceChatAllowedFrom.
const (
	VoiceChatFromAll         = "all"
	VoiceChatFromOnlyFriends = "only_friends"
)

// SocialSettings is the read-side view of a user's privacy settings. Rows
// are written by the profile CRUD API; users without a row default to
// only_friends.
type SocialSettings struct {
	Address              string
	VoiceChatAllowedFrom string
}

// AllowsVoiceChatFromAnyone reports whether the user accepts calls from
// non-friends.
func (s SocialSettings) AllowsVoiceChatFromAnyone() bool {
	return s.VoiceChatAllowedFrom == VoiceChatFromAll
}
