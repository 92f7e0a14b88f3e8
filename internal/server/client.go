package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gosocial/realtime/internal/calls"
	"github.com/gosocial/realtime/internal/profiles"
	"github.com/gosocial/realtime/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
	opTimeout      = 10 * time.Second
)

// CallService is the slice of the private-call state machine a connected
// client can drive.
type CallService interface {
	Start(ctx context.Context, callerAddress, calleeAddress string) (string, error)
	Accept(ctx context.Context, callId, calleeAddress string) (types.Credentials, error)
	Reject(ctx context.Context, callId, calleeAddress string) error
	End(ctx context.Context, callId, address string) error
}

// Client is one attached duplex connection. It owns the read/write pumps
// over the websocket and the set of open subscriptions for this connection.
type Client struct {
	conn       *websocket.Conn
	log        *log.Logger
	address    string
	registry   *Registry
	subscriber *Subscriber
	calls      CallService
	resolver   profiles.Resolver
	onActivity func()

	send chan *ServerMessage
	stop chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	subsLock sync.Mutex
	subs     map[string]context.CancelFunc
}

func NewClient(address string, conn *websocket.Conn, registry *Registry, callService CallService, resolver profiles.Resolver, logger *log.Logger, onActivity func()) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:       conn,
		log:        logger,
		address:    address,
		registry:   registry,
		subscriber: registry.Attach(address),
		calls:      callService,
		resolver:   resolver,
		onActivity: onActivity,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]context.CancelFunc),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write pump for %q exiting", c.address)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read pump for %q exiting", c.address)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.onActivity != nil {
			c.onActivity()
		}
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		if c.onActivity != nil {
			c.onActivity()
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		switch {
		case msg.Subscribe != nil:
			c.startSubscription(&msg)
		case msg.Unsubscribe != nil:
			c.stopSubscription(&msg)
		case msg.StartCall != nil:
			c.handleStartCall(&msg)
		case msg.AcceptCall != nil:
			c.handleAcceptCall(&msg)
		case msg.RejectCall != nil:
			c.handleRejectCall(&msg)
		case msg.EndCall != nil:
			c.handleEndCall(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// startSubscription opens a streaming subscription of the requested kind.
// Each kind may be open at most once per connection.
func (c *Client) startSubscription(msg *ClientMessage) {
	kind := msg.Subscribe.Kind

	var run func(ctx context.Context)
	switch kind {
	case KindFriendship:
		run = func(ctx context.Context) { runSubscription(ctx, c, friendshipSubscription()) }
	case KindFriendStatus:
		run = func(ctx context.Context) { runSubscription(ctx, c, friendStatusSubscription()) }
	case KindBlock:
		run = func(ctx context.Context) { runSubscription(ctx, c, blockSubscription()) }
	case KindCommunityMemberConnectivity:
		run = func(ctx context.Context) { runSubscription(ctx, c, communityMemberConnectivitySubscription()) }
	case KindPrivateVoiceChat:
		run = func(ctx context.Context) { runSubscription(ctx, c, privateVoiceChatSubscription()) }
	case KindCommunityVoiceChat:
		run = func(ctx context.Context) { runSubscription(ctx, c, communityVoiceChatSubscription()) }
	default:
		c.queueMessage(ErrBadRequest(msg.Id, "unknown subscription kind"))
		return
	}

	c.subsLock.Lock()
	if _, ok := c.subs[kind]; ok {
		c.subsLock.Unlock()
		c.queueMessage(ErrConflict(msg.Id, "already subscribed"))
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.subs[kind] = cancel
	c.subsLock.Unlock()

	go func() {
		defer c.removeSubscription(kind)
		run(ctx)
	}()

	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) stopSubscription(msg *ClientMessage) {
	kind := msg.Unsubscribe.Kind

	c.subsLock.Lock()
	cancel, ok := c.subs[kind]
	c.subsLock.Unlock()

	if !ok {
		c.queueMessage(ErrNotFound(msg.Id, "not subscribed"))
		return
	}

	cancel()
	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) removeSubscription(kind string) {
	c.subsLock.Lock()
	defer c.subsLock.Unlock()

	if cancel, ok := c.subs[kind]; ok {
		cancel()
		delete(c.subs, kind)
	}
}

func (c *Client) handleStartCall(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	callId, err := c.calls.Start(ctx, c.address, msg.StartCall.CalleeAddress)
	if err != nil {
		c.queueMessage(callErrorMessage(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"call_id": callId}))
}

func (c *Client) handleAcceptCall(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	creds, err := c.calls.Accept(ctx, msg.AcceptCall.CallId, c.address)
	if err != nil {
		c.queueMessage(callErrorMessage(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"credentials": creds}))
}

func (c *Client) handleRejectCall(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	if err := c.calls.Reject(ctx, msg.RejectCall.CallId, c.address); err != nil {
		c.queueMessage(callErrorMessage(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) handleEndCall(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	if err := c.calls.End(ctx, msg.EndCall.CallId, c.address); err != nil {
		c.queueMessage(callErrorMessage(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, nil))
}

func callErrorMessage(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, calls.ErrInvalidRequest):
		return ErrBadRequest(id, err.Error())
	case errors.Is(err, calls.ErrNotAllowed):
		return ErrNotAllowed(id, err.Error())
	case errors.Is(err, calls.ErrNotFound):
		return ErrNotFound(id, err.Error())
	case errors.Is(err, calls.ErrConflict):
		return ErrConflict(id, err.Error())
	default:
		return ErrInternalError(id)
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for %q, dropping message", c.address)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	close(c.stop)
}

func (c *Client) cleanup() {
	c.cancel()
	c.registry.Detach(c.address)
	c.stopClient()
}
