package captchastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"alphagate/entity"
	"alphagate/internal/config"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "captcha:"

// Redis shares pending challenges between server instances; expiry is delegated to key TTLs.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, conf config.Redis) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(conf.Host, conf.Port),
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Put(ctx context.Context, ch *entity.CaptchaChallenge, ttl time.Duration) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	if err = r.client.Set(ctx, keyPrefix+ch.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Take relies on GETDEL so two instances cannot both consume one challenge.
func (r *Redis) Take(ctx context.Context, id string) (*entity.CaptchaChallenge, error) {
	data, err := r.client.GetDel(ctx, keyPrefix+id).Bytes()
	return decode(data, err)
}

func decode(data []byte, err error) (*entity.CaptchaChallenge, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var ch entity.CaptchaChallenge
	if err = json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &ch, nil
}
