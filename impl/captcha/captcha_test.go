package captcha

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"alphagate/entity"
	"alphagate/internal/captchastore"
	"alphagate/lib/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

func newIssuer(store Store) (*Issuer, *clock.Fake) {
	clk := clock.NewFake(start)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, clk, Config{Length: 5, TTL: 5 * time.Minute, Grace: 2 * time.Second}, log), clk
}

func TestIssue(t *testing.T) {
	issuer, _ := newIssuer(captchastore.NewMemory())

	view, text, err := issuer.issue(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, 300, view.ExpiresInSeconds)
	assert.Len(t, text, 5)
	for _, r := range text {
		assert.True(t, strings.ContainsRune(Charset, r), "unexpected rune %q", r)
	}

	require.True(t, strings.HasPrefix(view.SvgData, "data:image/svg+xml;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(view.SvgData, "data:image/svg+xml;base64,"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<svg")
}

func TestConsumeRoundTrip(t *testing.T) {
	issuer, _ := newIssuer(captchastore.NewMemory())
	ctx := context.Background()

	view, text, err := issuer.issue(ctx)
	require.NoError(t, err)

	answer := "  " + strings.ToLower(text) + " "
	assert.NoError(t, issuer.Consume(ctx, view.ID, answer))
	assert.ErrorIs(t, issuer.Consume(ctx, view.ID, answer), ErrChallengeExpired)
}

func TestConsumeWrongAnswerDestroysChallenge(t *testing.T) {
	issuer, _ := newIssuer(captchastore.NewMemory())
	ctx := context.Background()

	view, text, err := issuer.issue(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, issuer.Consume(ctx, view.ID, "wrong"), ErrChallengeMismatch)
	assert.ErrorIs(t, issuer.Consume(ctx, view.ID, text), ErrChallengeExpired)
}

func TestConsumeAfterTTL(t *testing.T) {
	issuer, clk := newIssuer(captchastore.NewMemory())
	ctx := context.Background()

	view, text, err := issuer.issue(ctx)
	require.NoError(t, err)

	clk.Advance(5*time.Minute + time.Second)
	assert.ErrorIs(t, issuer.Consume(ctx, view.ID, text), ErrChallengeExpired)
}

func TestConsumeUnknown(t *testing.T) {
	issuer, _ := newIssuer(captchastore.NewMemory())
	assert.ErrorIs(t, issuer.Consume(context.Background(), "nope", "ABCDE"), ErrChallengeExpired)
}

type failingStore struct{}

func (failingStore) Put(context.Context, *entity.CaptchaChallenge, time.Duration) error {
	return errors.New("store down")
}

func (failingStore) Take(context.Context, string) (*entity.CaptchaChallenge, error) {
	return nil, errors.New("store down")
}

func TestStoreErrorsPropagate(t *testing.T) {
	issuer, _ := newIssuer(failingStore{})
	_, err := issuer.Issue(context.Background())
	assert.Error(t, err)

	err = issuer.Consume(context.Background(), "id", "ABCDE")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrChallengeExpired))
}

type spyStore struct {
	*captchastore.Memory
	ttl time.Duration
}

func (s *spyStore) Put(ctx context.Context, ch *entity.CaptchaChallenge, ttl time.Duration) error {
	s.ttl = ttl
	return s.Memory.Put(ctx, ch, ttl)
}

func TestStoreTTLIncludesGrace(t *testing.T) {
	spy := &spyStore{Memory: captchastore.NewMemory()}
	issuer, _ := newIssuer(spy)
	_, err := issuer.Issue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute+2*time.Second, spy.ttl)
}

func TestRenderRejectsEmpty(t *testing.T) {
	_, err := Render("")
	assert.Error(t, err)
}
