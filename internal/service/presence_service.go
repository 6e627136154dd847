package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPresenceWindow is how recently a user must have been active to count
// as online.
const DefaultPresenceWindow = 5 * time.Minute

func presenceKey(userID uint) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// PresenceService tracks soft-state presence. A user's record is a single
// lastSeen timestamp refreshed by any authenticated activity; there is no
// explicit offline event. Records self-expire, so a crashed client goes
// offline within one window with no cleanup pass.
//
// Redis holds the records so every instance sees the same view. Without
// Redis the service falls back to process-local state, which is correct for
// a single instance and merely conservative for more.
type PresenceService struct {
	redis  *redis.Client
	window time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	local map[uint]time.Time
}

// NewPresenceService returns a new PresenceService. A nil redis client
// enables the in-memory fallback.
func NewPresenceService(redisClient *redis.Client, window time.Duration) *PresenceService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	return &PresenceService{
		redis:  redisClient,
		window: window,
		now:    time.Now,
		local:  make(map[uint]time.Time),
	}
}

// Touch records activity for the user. Best-effort: a Redis failure falls
// back to local state rather than failing the request that triggered it.
func (s *PresenceService) Touch(ctx context.Context, userID uint) {
	now := s.now()
	if s.redis != nil {
		err := s.redis.Set(ctx, presenceKey(userID), now.UnixMilli(), s.window).Err()
		if err == nil {
			return
		}
	}
	s.mu.Lock()
	s.local[userID] = now
	s.mu.Unlock()
}

// LastSeen returns the user's last activity time, or zero if none is known.
func (s *PresenceService) LastSeen(ctx context.Context, userID uint) time.Time {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, presenceKey(userID)).Result()
		if err == nil {
			if ms, perr := strconv.ParseInt(val, 10, 64); perr == nil {
				return time.UnixMilli(ms)
			}
		}
		if err != redis.Nil && err != nil {
			// fall through to local state
		} else if err == redis.Nil {
			return time.Time{}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local[userID]
}

// IsOnline reports whether the user was active within the presence window.
func (s *PresenceService) IsOnline(ctx context.Context, userID uint) bool {
	last := s.LastSeen(ctx, userID)
	if last.IsZero() {
		return false
	}
	return s.now().Sub(last) < s.window
}

// OnlineSet resolves presence for a batch of users in one pass.
func (s *PresenceService) OnlineSet(ctx context.Context, userIDs []uint) map[uint]bool {
	result := make(map[uint]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result
	}

	if s.redis != nil {
		keys := make([]string, len(userIDs))
		for i, id := range userIDs {
			keys[i] = presenceKey(id)
		}
		vals, err := s.redis.MGet(ctx, keys...).Result()
		if err == nil {
			now := s.now()
			for i, v := range vals {
				online := false
				if str, ok := v.(string); ok {
					if ms, perr := strconv.ParseInt(str, 10, 64); perr == nil {
						online = now.Sub(time.UnixMilli(ms)) < s.window
					}
				}
				result[userIDs[i]] = online
			}
			return result
		}
	}

	for _, id := range userIDs {
		result[id] = s.IsOnline(ctx, id)
	}
	return result
}
