// README: Dispatch bookkeeping backed by Redis (dispatched_at key + notified set).
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"drivebook/internal/types"
)

type DispatchStore struct {
	redis *redis.Client
}

func NewDispatchStore(redis *redis.Client) *DispatchStore {
	return &DispatchStore{redis: redis}
}

// RecordDispatch keeps the first dispatch time and adds candidateIDs to the
// notified set. Re-running it for the same booking only grows the set.
func (s *DispatchStore) RecordDispatch(ctx context.Context, pool types.Pool, bookingID types.ID, candidateIDs []types.ID, at time.Time) error {
	pipe := s.redis.Pipeline()
	dk := dispatchKey(pool, bookingID)
	pipe.SetNX(ctx, dk, at.UTC().Format(time.RFC3339), keyTTL)
	pipe.Expire(ctx, dk, keyTTL)
	if len(candidateIDs) > 0 {
		members := make([]interface{}, len(candidateIDs))
		for i, id := range candidateIDs {
			members[i] = string(id)
		}
		nk := notifiedKey(pool, bookingID)
		pipe.SAdd(ctx, nk, members...)
		pipe.Expire(ctx, nk, keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *DispatchStore) GetDispatch(ctx context.Context, pool types.Pool, bookingID types.ID) (*Dispatch, error) {
	d := &Dispatch{BookingID: bookingID, Pool: pool, Notified: []types.ID{}}

	val, err := s.redis.Get(ctx, dispatchKey(pool, bookingID)).Result()
	if errors.Is(err, redis.Nil) {
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, fmt.Errorf("parse dispatched_at: %w", err)
	}
	d.Dispatched = true
	d.DispatchedAt = at

	members, err := s.redis.SMembers(ctx, notifiedKey(pool, bookingID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	for _, m := range members {
		d.Notified = append(d.Notified, types.ID(m))
	}
	return d, nil
}

func dispatchKey(pool types.Pool, bookingID types.ID) string {
	return fmt.Sprintf(dispatchKeyFmt, string(pool), string(bookingID))
}

func notifiedKey(pool types.Pool, bookingID types.ID) string {
	return fmt.Sprintf(notifiedKeyFmt, string(pool), string(bookingID))
}
