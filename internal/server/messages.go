package server

import (
	"net/http"
	"time"

	"github.com/gosocial/realtime/internal/types"
)

// Wire subscription kinds a client may subscribe to.
const (
	KindFriendship                  = "friendship"
	KindFriendStatus                = "friend_status"
	KindBlock                       = "block"
	KindCommunityMemberConnectivity = "community_member_connectivity"
	KindPrivateVoiceChat            = "private_voice_chat"
	KindCommunityVoiceChat          = "community_voice_chat"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Subscribe   *Subscribe   `json:"subscribe,omitempty"`
	Unsubscribe *Unsubscribe `json:"unsubscribe,omitempty"`
	StartCall   *StartCall   `json:"start_call,omitempty"`
	AcceptCall  *AcceptCall  `json:"accept_call,omitempty"`
	RejectCall  *RejectCall  `json:"reject_call,omitempty"`
	EndCall     *EndCall     `json:"end_call,omitempty"`
	client      *Client      `json:"-"`
}

type Subscribe struct {
	Kind string `json:"kind"`
}

type Unsubscribe struct {
	Kind string `json:"kind"`
}

type StartCall struct {
	CalleeAddress string `json:"callee_address"`
}

type AcceptCall struct {
	CallId string `json:"call_id"`
}

type RejectCall struct {
	CallId string `json:"call_id"`
}

type EndCall struct {
	CallId string `json:"call_id"`
}

type ServerMessage struct {
	BaseMessage
	Response *Response           `json:"response,omitempty"`
	Update   *UpdateNotification `json:"update,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// UpdateNotification is the wire-format union of everything a subscription
// can yield.
type UpdateNotification struct {
	Friendship                  *FriendshipNotification                  `json:"friendship,omitempty"`
	FriendStatus                *FriendStatusNotification                `json:"friend_status,omitempty"`
	Block                       *types.BlockUpdate                       `json:"block,omitempty"`
	CommunityMemberConnectivity *types.CommunityMemberConnectivityUpdate `json:"community_member_connectivity,omitempty"`
	PrivateVoiceChat            *types.PrivateVoiceChatUpdate            `json:"private_voice_chat,omitempty"`
	CommunityVoiceChat          *types.CommunityVoiceChatUpdate          `json:"community_voice_chat,omitempty"`
}

// FriendshipNotification is a friendship update enriched with the
// counterpart's profile.
type FriendshipNotification struct {
	Id      string        `json:"id"`
	Friend  types.Profile `json:"friend"`
	Action  string        `json:"action"`
	Message string        `json:"message,omitempty"`
}

// FriendStatusNotification is a presence change enriched with the friend's
// profile.
type FriendStatusNotification struct {
	Friend types.Profile `json:"friend"`
	Status string        `json:"status"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func errResponse(id, code int, msg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        msg,
		},
	}
}

func ErrBadRequest(id int, msg string) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, msg)
}

func ErrNotAllowed(id int, msg string) *ServerMessage {
	return errResponse(id, http.StatusForbidden, msg)
}

func ErrNotFound(id int, msg string) *ServerMessage {
	return errResponse(id, http.StatusNotFound, msg)
}

func ErrConflict(id int, msg string) *ServerMessage {
	return errResponse(id, http.StatusConflict, msg)
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := errResponse(0, http.StatusBadRequest, "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
