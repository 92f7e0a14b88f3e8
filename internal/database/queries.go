package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func (db *PgRepository) CreatePendingCall(id, callerAddress, calleeAddress string) (PendingCall, error) {
	res := db.conn.QueryRow(
		"INSERT INTO pending_calls (id, caller_address, callee_address, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, caller_address, callee_address, created_at",
		id,
		callerAddress,
		calleeAddress,
		time.Now().UTC(),
	)

	var call PendingCall
	err := res.Scan(
		&call.Id,
		&call.CallerAddress,
		&call.CalleeAddress,
		&call.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return PendingCall{}, ErrDuplicatePendingCall
		}
		return PendingCall{}, err
	}

	return call, nil
}

func (db *PgRepository) GetPendingCall(id string) (PendingCall, error) {
	row := db.conn.QueryRow(
		"SELECT id, caller_address, callee_address, created_at FROM pending_calls "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var call PendingCall
	err := row.Scan(
		&call.Id,
		&call.CallerAddress,
		&call.CalleeAddress,
		&call.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingCall{}, ErrNoPendingCall
	}

	return call, err
}

// GetPendingCallForUsers returns any pending call in which one of the given
// addresses participates, in either role. A single query covers the "is
// anyone already calling or being called" precondition.
func (db *PgRepository) GetPendingCallForUsers(addresses ...string) (PendingCall, error) {
	row := db.conn.QueryRow(
		"SELECT id, caller_address, callee_address, created_at FROM pending_calls "+
			"WHERE caller_address = ANY($1) OR callee_address = ANY($1) LIMIT 1",
		pq.Array(addresses),
	)

	var call PendingCall
	err := row.Scan(
		&call.Id,
		&call.CallerAddress,
		&call.CalleeAddress,
		&call.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingCall{}, ErrNoPendingCall
	}

	return call, err
}

// DeletePendingCall removes the row for id and reports whether a row was
// actually deleted. A false result means another transition already removed
// it; callers treat that as having lost the race.
func (db *PgRepository) DeletePendingCall(id string) (bool, error) {
	res, err := db.conn.Exec("DELETE FROM pending_calls WHERE id = $1", id)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// DeleteExpiredPendingCalls deletes up to limit rows older than olderThan and
// returns them so the caller can publish expiry events for each.
func (db *PgRepository) DeleteExpiredPendingCalls(olderThan time.Time, limit int) ([]PendingCall, error) {
	rows, err := db.conn.Query(
		"DELETE FROM pending_calls WHERE id IN "+
			"(SELECT id FROM pending_calls WHERE created_at < $1 ORDER BY created_at LIMIT $2) "+
			"RETURNING id, caller_address, callee_address, created_at",
		olderThan,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []PendingCall
	for rows.Next() {
		var call PendingCall
		if err := rows.Scan(&call.Id, &call.CallerAddress, &call.CalleeAddress, &call.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired call: %w", err)
		}

		expired = append(expired, call)
	}

	return expired, rows.Err()
}

func (db *PgRepository) AreFriends(addressA, addressB string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM friendships WHERE is_active AND "+
			"((address_requester = $1 AND address_requested = $2) OR "+
			"(address_requester = $2 AND address_requested = $1)))",
		addressA,
		addressB,
	)

	var active bool
	err := row.Scan(&active)

	return active, err
}

func (db *PgRepository) GetSocialSettings(addresses []string) (map[string]SocialSettings, error) {
	rows, err := db.conn.Query(
		"SELECT address, voice_chat_allowed_from FROM social_settings WHERE address = ANY($1)",
		pq.Array(addresses),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]SocialSettings)
	for rows.Next() {
		var s SocialSettings
		if err := rows.Scan(&s.Address, &s.VoiceChatAllowedFrom); err != nil {
			return nil, fmt.Errorf("scan social settings: %w", err)
		}

		settings[s.Address] = s
	}

	return settings, rows.Err()
}

// FilterFriendsOf returns the subset of candidates that are active friends of
// address. Restricting the query to candidates bounds it by the number of
// locally attached connections rather than the size of the friend graph.
func (db *PgRepository) FilterFriendsOf(address string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := db.conn.Query(
		"SELECT f.friend FROM ("+
			"SELECT CASE WHEN address_requester = $1 THEN address_requested ELSE address_requester END AS friend "+
			"FROM friendships WHERE is_active AND (address_requester = $1 OR address_requested = $1)"+
			") f WHERE f.friend = ANY($2)",
		address,
		pq.Array(candidates),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}

		friends = append(friends, friend)
	}

	return friends, rows.Err()
}

// FilterMembersOfCommunity returns the subset of candidates that belong to
// the community.
func (db *PgRepository) FilterMembersOfCommunity(communityId string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := db.conn.Query(
		"SELECT member_address FROM community_members WHERE community_id = $1 AND member_address = ANY($2)",
		communityId,
		pq.Array(candidates),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}

		members = append(members, member)
	}

	return members, rows.Err()
}
