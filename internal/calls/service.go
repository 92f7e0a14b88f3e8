package calls

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/teris-io/shortid"

	"github.com/gosocial/realtime/internal/comms"
	"github.com/gosocial/realtime/internal/database"
	"github.com/gosocial/realtime/internal/pubsub"
	"github.com/gosocial/realtime/internal/stats"
	"github.com/gosocial/realtime/internal/types"
)

const defaultExpiryBatchSize = 100

// Service is the private call state machine. A call is REQUESTED while its
// row exists; accept, reject, end and expiry all delete the row, and the
// delete's affected-row count is the compare-and-swap that decides which of
// two racing transitions wins. Only the winner publishes its event.
type Service struct {
	log             *log.Logger
	db              database.Repository
	comms           comms.Client
	bus             pubsub.Publisher
	stats           stats.StatsProvider
	ttl             time.Duration
	expiryBatchSize int
}

func NewService(logger *log.Logger, db database.Repository, commsClient comms.Client, bus pubsub.Publisher, st stats.StatsProvider, ttl time.Duration) *Service {
	return &Service{
		log:             logger,
		db:              db,
		comms:           commsClient,
		bus:             bus,
		stats:           st,
		ttl:             ttl,
		expiryBatchSize: defaultExpiryBatchSize,
	}
}

// Start creates a pending call from caller to callee and notifies the
// callee. The storage-level uniqueness constraints are the final guard even
// if the precondition checks raced with another start.
func (s *Service) Start(ctx context.Context, callerAddress, calleeAddress string) (string, error) {
	if callerAddress == "" || calleeAddress == "" {
		return "", fmt.Errorf("%w: missing address", ErrInvalidRequest)
	}
	if strings.EqualFold(callerAddress, calleeAddress) {
		return "", fmt.Errorf("%w: cannot call yourself", ErrInvalidRequest)
	}

	allowed, err := s.callAllowed(callerAddress, calleeAddress)
	if err != nil {
		return "", fmt.Errorf("check call privacy: %w", err)
	}
	if !allowed {
		return "", fmt.Errorf("%w: %q does not accept calls from %q", ErrNotAllowed, calleeAddress, callerAddress)
	}

	if _, err := s.db.GetPendingCallForUsers(callerAddress, calleeAddress); err == nil {
		return "", fmt.Errorf("%w: one of the parties already has a pending call", ErrConflict)
	} else if !errors.Is(err, database.ErrNoPendingCall) {
		return "", fmt.Errorf("check pending calls: %w", err)
	}

	// callee first, so when both parties are busy the callee's busy state
	// is the one reported
	busy, err := s.comms.IsUserInCall(ctx, calleeAddress)
	if err != nil {
		return "", fmt.Errorf("check callee call status: %w", err)
	}
	if busy {
		return "", fmt.Errorf("%w: %q is already in a call", ErrConflict, calleeAddress)
	}

	busy, err = s.comms.IsUserInCall(ctx, callerAddress)
	if err != nil {
		return "", fmt.Errorf("check caller call status: %w", err)
	}
	if busy {
		return "", fmt.Errorf("%w: you are already in a call", ErrConflict)
	}

	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate call id: %w", err)
	}

	call, err := s.db.CreatePendingCall(id, callerAddress, calleeAddress)
	if errors.Is(err, database.ErrDuplicatePendingCall) {
		return "", fmt.Errorf("%w: one of the parties already has a pending call", ErrConflict)
	}
	if err != nil {
		return "", fmt.Errorf("create pending call: %w", err)
	}

	s.publishUpdate(ctx, types.PrivateVoiceChatUpdate{
		CallId:        call.Id,
		Status:        types.CallRequested,
		CallerAddress: call.CallerAddress,
		CalleeAddress: call.CalleeAddress,
	})

	return call.Id, nil
}

// Accept commits the REQUESTED -> ACCEPTED transition. Credentials are
// fetched before the row is deleted so an upstream failure leaves the call
// pending; the delete is the commit point, and losing it means another
// transition already resolved the call.
func (s *Service) Accept(ctx context.Context, callId, calleeAddress string) (types.Credentials, error) {
	call, err := s.db.GetPendingCall(callId)
	if errors.Is(err, database.ErrNoPendingCall) {
		return types.Credentials{}, fmt.Errorf("%w: %q", ErrNotFound, callId)
	}
	if err != nil {
		return types.Credentials{}, fmt.Errorf("get pending call: %w", err)
	}

	if call.CalleeAddress != calleeAddress {
		return types.Credentials{}, fmt.Errorf("%w: not the callee of call %q", ErrNotAllowed, callId)
	}

	creds, err := s.comms.GetCallCredentials(ctx, callId, []string{call.CallerAddress, call.CalleeAddress})
	if err != nil {
		return types.Credentials{}, fmt.Errorf("fetch call credentials: %w", err)
	}

	deleted, err := s.db.DeletePendingCall(callId)
	if err != nil {
		return types.Credentials{}, fmt.Errorf("delete pending call: %w", err)
	}
	if !deleted {
		// a reject, end or expiry won the race; make sure the signaling
		// service is not left tracking this callee
		if err := s.comms.EndCallForUser(ctx, callId, calleeAddress); err != nil {
			s.log.Printf("end call %q for %q after lost accept race: %v", callId, calleeAddress, err)
		}
		return types.Credentials{}, fmt.Errorf("%w: call %q already resolved", ErrNotFound, callId)
	}

	callerCreds := creds[call.CallerAddress]
	calleeCreds := creds[call.CalleeAddress]

	s.publishUpdate(ctx, types.PrivateVoiceChatUpdate{
		CallId:        callId,
		Status:        types.CallAccepted,
		CallerAddress: call.CallerAddress,
		Credentials:   &callerCreds,
	})
	s.publishUpdate(ctx, types.PrivateVoiceChatUpdate{
		CallId:        callId,
		Status:        types.CallAccepted,
		CalleeAddress: call.CalleeAddress,
		Credentials:   &calleeCreds,
	})

	return calleeCreds, nil
}

// Reject commits REQUESTED -> REJECTED. Losing the delete race publishes
// nothing and reports not-found.
func (s *Service) Reject(ctx context.Context, callId, calleeAddress string) error {
	call, err := s.db.GetPendingCall(callId)
	if errors.Is(err, database.ErrNoPendingCall) {
		return fmt.Errorf("%w: %q", ErrNotFound, callId)
	}
	if err != nil {
		return fmt.Errorf("get pending call: %w", err)
	}

	if call.CalleeAddress != calleeAddress {
		return fmt.Errorf("%w: not the callee of call %q", ErrNotAllowed, callId)
	}

	deleted, err := s.db.DeletePendingCall(callId)
	if err != nil {
		return fmt.Errorf("delete pending call: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: call %q already resolved", ErrNotFound, callId)
	}

	s.publishUpdate(ctx, types.PrivateVoiceChatUpdate{
		CallId:        callId,
		Status:        types.CallRejected,
		CallerAddress: call.CallerAddress,
		CalleeAddress: call.CalleeAddress,
	})

	return nil
}

// End resolves a call from either the pending table or, if the call was
// already accepted, the signaling service. A caller that is party to
// neither is silently ignored: the API may be invoked speculatively, and a
// third party must not be able to end someone else's call.
func (s *Service) End(ctx context.Context, callId, address string) error {
	call, err := s.db.GetPendingCall(callId)
	if err != nil && !errors.Is(err, database.ErrNoPendingCall) {
		return fmt.Errorf("get pending call: %w", err)
	}

	if err == nil {
		if address != call.CallerAddress && address != call.CalleeAddress {
			return nil
		}

		deleted, err := s.db.DeletePendingCall(callId)
		if err != nil {
			return fmt.Errorf("delete pending call: %w", err)
		}

		if deleted {
			// omit the ending party's address so the update routes to,
			// and names, the party that remains
			update := types.PrivateVoiceChatUpdate{
				CallId: callId,
				Status: types.CallEnded,
			}
			if address == call.CallerAddress {
				update.CalleeAddress = call.CalleeAddress
			} else {
				update.CallerAddress = call.CallerAddress
			}
			s.publishUpdate(ctx, update)

			return nil
		}
		// lost the race: the call may have just been accepted, so fall
		// through to the signaling service
	}

	participants, err := s.comms.EndCall(ctx, callId)
	if err != nil {
		return fmt.Errorf("end active call: %w", err)
	}
	if len(participants) == 0 {
		return fmt.Errorf("%w: nothing to end for call %q", ErrNotFound, callId)
	}

	for _, participant := range participants {
		if participant == address {
			continue
		}

		s.publishUpdate(ctx, types.PrivateVoiceChatUpdate{
			CallId:        callId,
			Status:        types.CallEnded,
			CalleeAddress: participant,
		})
	}

	return nil
}

// ExpireStale sweeps pending calls older than the TTL in bounded batches,
// publishing an expiry event to both parties of each. An empty batch is the
// only termination condition.
func (s *Service) ExpireStale(ctx context.Context) error {
	for {
		expired, err := s.db.DeleteExpiredPendingCalls(time.Now().UTC().Add(-s.ttl), s.expiryBatchSize)
		if err != nil {
			return fmt.Errorf("delete expired calls: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}

		s.log.Printf("expired %d pending calls", len(expired))
		for _, call := range expired {
			s.stats.Incr(stats.ExpiredCalls)
			s.publishUpdate(ctx, types.PrivateVoiceChatUpdate{
				CallId:        call.Id,
				Status:        types.CallExpired,
				CallerAddress: call.CallerAddress,
				CalleeAddress: call.CalleeAddress,
			})
		}
	}
}

func (s *Service) callAllowed(callerAddress, calleeAddress string) (bool, error) {
	settings, err := s.db.GetSocialSettings([]string{callerAddress, calleeAddress})
	if err != nil {
		return false, fmt.Errorf("get social settings: %w", err)
	}

	// users without a settings row default to only_friends
	if settings[callerAddress].AllowsVoiceChatFromAnyone() && settings[calleeAddress].AllowsVoiceChatFromAnyone() {
		return true, nil
	}

	return s.db.AreFriends(callerAddress, calleeAddress)
}

// publishUpdate sends a call lifecycle event through the bus. Delivery is
// best-effort: a publish failure is logged and the transition stands.
func (s *Service) publishUpdate(ctx context.Context, update types.PrivateVoiceChatUpdate) {
	if update.Timestamp == 0 {
		update.Timestamp = time.Now().UTC().UnixMilli()
	}

	if err := s.bus.Publish(ctx, pubsub.PrivateVoiceChatUpdatesChannel, update); err != nil {
		s.log.Printf("publish %s update for call %q: %v", update.Status, update.CallId, err)
		return
	}

	s.stats.Incr(stats.PublishedUpdates)
}
