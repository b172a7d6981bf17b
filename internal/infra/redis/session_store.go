package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"hourly-quiz-service/internal/app"
	"hourly-quiz-service/internal/domain"
	"hourly-quiz-service/internal/infra/memory"
)

const (
	leaderboardKey = "quiz:leaderboard"
	maxTxRetries   = 16
)

// SessionStore keeps each session as a JSON record under quiz:session:{id} and
// mirrors cumulative scores into the quiz:leaderboard sorted set.
//
// Updates are optimistic: the session key is WATCHed, fn runs on the loaded
// copy and the write is committed with MULTI/EXEC. A concurrent writer aborts
// the transaction and the update is retried on fresh state.
//
// Session keys never expire: an expired record would reset the participant's
// score while its leaderboard member lived on.
type SessionStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{
		client: client,
		clock:  time.Now,
	}
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.ParticipantSession, bool, error) {
	return s.load(ctx, s.client, sessionID)
}

func (s *SessionStore) Update(ctx context.Context, sessionID string, fn app.UpdateFunc) (domain.ParticipantSession, error) {
	key := s.key(sessionID)
	var out domain.ParticipantSession

	txf := func(tx *redis.Tx) error {
		now := s.clock()
		session, ok, err := s.load(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			session = domain.ParticipantSession{SessionID: sessionID, CreatedAt: now}
		}
		if err := fn(&session); err != nil {
			return err
		}
		session.UpdatedAt = now

		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(session.CumulativeScore), Member: sessionID})
			return nil
		})
		if err != nil {
			return err
		}
		out = session
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.ParticipantSession{}, err
	}
	return domain.ParticipantSession{}, fmt.Errorf("%w: %s", domain.ErrConcurrentUpdate, sessionID)
}

// Top reads the highest scores from the sorted set. Redis orders equal scores
// by member descending, so every member tied with the last slot is fetched and
// the page is re-sorted by session id.
func (s *SessionStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	page, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(page) == limit {
		cutoff := page[len(page)-1].Score
		page, err = s.client.ZRevRangeByScoreWithScores(ctx, leaderboardKey, &redis.ZRangeBy{
			Min: strconv.FormatFloat(cutoff, 'f', -1, 64),
			Max: "+inf",
		}).Result()
		if err != nil {
			return nil, err
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(page))
	keys := make([]string, 0, len(page))
	for _, z := range page {
		id, _ := z.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{SessionID: id, Score: int(z.Score)})
		keys = append(keys, s.key(id))
	}
	if len(keys) > 0 {
		raw, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		for i, v := range raw {
			data, ok := v.(string)
			if !ok {
				continue
			}
			var session domain.ParticipantSession
			if err := json.Unmarshal([]byte(data), &session); err == nil {
				entries[i].DisplayName = session.DisplayName
			}
		}
	}

	memory.SortLeaderboard(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SessionStore) load(ctx context.Context, c getter, sessionID string) (domain.ParticipantSession, bool, error) {
	data, err := c.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ParticipantSession{}, false, nil
	}
	if err != nil {
		return domain.ParticipantSession{}, false, err
	}
	var session domain.ParticipantSession
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.ParticipantSession{}, false, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return session, true, nil
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
