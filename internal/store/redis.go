package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

const consumeRetries = 3

// RedisStore implements InviteStore and SnapshotStore on top of redis
// key TTLs, so invite expiry and snapshot retention need no reaper.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("module", "store.redis").Str("addr", addr).Msg("redis connected")
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Close() {
	_ = s.rdb.Close()
}

func inviteKey(code domain.InviteCode) string {
	return fmt.Sprintf("invite:%s", code)
}

func snapshotKey(roomID domain.RoomID) string {
	return fmt.Sprintf("voicestate:%s", roomID)
}

func (s *RedisStore) CreateInvite(ctx context.Context, inv *domain.Invite) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	ttl := time.Until(inv.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrInvalidInviteCode
	}
	return s.rdb.Set(ctx, inviteKey(inv.Code), data, ttl).Err()
}

func (s *RedisStore) GetInvite(ctx context.Context, code domain.InviteCode) (*domain.Invite, error) {
	data, err := s.rdb.Get(ctx, inviteKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrInvalidInviteCode
	}
	if err != nil {
		return nil, err
	}
	var inv domain.Invite
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ConsumeInvite counts one redemption under an optimistic WATCH
// transaction so a use-limited code cannot be over-redeemed by
// concurrent joins.
func (s *RedisStore) ConsumeInvite(ctx context.Context, code domain.InviteCode) (*domain.Invite, error) {
	key := inviteKey(code)
	var out *domain.Invite

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrInvalidInviteCode
		}
		if err != nil {
			return err
		}
		var inv domain.Invite
		if err := json.Unmarshal(data, &inv); err != nil {
			return err
		}
		if inv.Expired(time.Now().UTC()) || inv.Exhausted() {
			return domain.ErrInvalidInviteCode
		}
		inv.Uses++
		updated, err := json.Marshal(&inv)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		out = &inv
		return nil
	}

	for i := 0; i < consumeRetries; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, domain.ErrServiceUnavailable
}

func (s *RedisStore) RevokeInvite(ctx context.Context, code domain.InviteCode) error {
	return s.rdb.Del(ctx, inviteKey(code)).Err()
}

func (s *RedisStore) SaveVoiceSnapshot(ctx context.Context, roomID domain.RoomID, data []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, snapshotKey(roomID), data, ttl).Err()
}

func (s *RedisStore) LoadVoiceSnapshot(ctx context.Context, roomID domain.RoomID) ([]byte, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}
