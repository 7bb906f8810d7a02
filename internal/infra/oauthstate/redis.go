package oauthstate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
)

const keyPrefix = "workspace:oauth:state:"

// RedisStore keeps OAuth state in redis. Consume uses GETDEL so a state is
// handed out at most once even with several server replicas.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

// Dial connects and pings redis
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx2).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

func (s *RedisStore) Put(ctx context.Context, st auth.State, ttl time.Duration) error {
	b, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encode oauth state")
	}
	return errors.Wrap(s.rdb.Set(ctx, keyPrefix+st.Value, b, ttl).Err(), "store oauth state")
}

func (s *RedisStore) Consume(ctx context.Context, value string) (*auth.State, error) {
	raw, err := s.rdb.GetDel(ctx, keyPrefix+value).Bytes()
	if err == redis.Nil {
		return nil, auth.ErrStateNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "consume oauth state")
	}
	var st auth.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, errors.Wrap(err, "decode oauth state")
	}
	return &st, nil
}
