package captchastore

import (
	"context"
	"testing"
	"time"

	"alphagate/entity"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type store interface {
	Put(ctx context.Context, ch *entity.CaptchaChallenge, ttl time.Duration) error
	Take(ctx context.Context, id string) (*entity.CaptchaChallenge, error)
}

func runStoreSuite(t *testing.T, s store) {
	ctx := context.Background()
	expires := time.Date(2025, 4, 10, 9, 5, 0, 0, time.UTC)

	t.Run("take is single shot", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, &entity.CaptchaChallenge{ID: "c1", Text: "AB2CD", ExpiresAt: expires}, time.Minute))

		got, err := s.Take(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "AB2CD", got.Text)
		assert.True(t, got.ExpiresAt.Equal(expires))

		got, err = s.Take(ctx, "c1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("entries are independent", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, &entity.CaptchaChallenge{ID: "c2", Text: "XYZ23"}, time.Minute))
		require.NoError(t, s.Put(ctx, &entity.CaptchaChallenge{ID: "c3", Text: "PQR45"}, time.Minute))

		got, err := s.Take(ctx, "c3")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "PQR45", got.Text)

		got, err = s.Take(ctx, "c2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "XYZ23", got.Text)
	})

	t.Run("unknown id", func(t *testing.T) {
		got, err := s.Take(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemory(t *testing.T) {
	runStoreSuite(t, NewMemory())
}

func TestMemoryEvictsAfterTTL(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put(context.Background(), &entity.CaptchaChallenge{ID: "short", Text: "AAAAA"}, 20*time.Millisecond))
	assert.Equal(t, 1, m.Len())
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryReplaceKeepsNewEntry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, &entity.CaptchaChallenge{ID: "same", Text: "OLD22"}, 10*time.Millisecond))
	require.NoError(t, m.Put(ctx, &entity.CaptchaChallenge{ID: "same", Text: "NEW33"}, time.Minute))
	time.Sleep(30 * time.Millisecond)

	got, err := m.Take(ctx, "same")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "NEW33", got.Text)
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	s := NewRedisWithClient(redis.NewClient(opts))
	t.Cleanup(func() { _ = s.Close() })

	runStoreSuite(t, s)
}
