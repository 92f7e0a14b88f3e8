package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSocialSettings_AllowsVoiceChatFromAnyone(t *testing.T) {
	assert.True(t, SocialSettings{VoiceChatAllowedFrom: VoiceChatFromAll}.AllowsVoiceChatFromAnyone())
	assert.False(t, SocialSettings{VoiceChatAllowedFrom: VoiceChatFromOnlyFriends}.AllowsVoiceChatFromAnyone())
	assert.False(t, SocialSettings{}.AllowsVoiceChatFromAnyone(), "expected missing settings to default closed")
}
