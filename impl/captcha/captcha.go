// Package captcha issues single-use visual challenges and verifies answers.
package captcha

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"alphagate/entity"
	"alphagate/lib/clock"
	"alphagate/lib/idx"
	"alphagate/lib/sl"
)

// Charset leaves out 0/O and 1/I.
const Charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var (
	ErrChallengeExpired  = errors.New("captcha expired or unknown")
	ErrChallengeMismatch = errors.New("captcha answer mismatch")
)

// Store keeps pending challenges. Take must return and remove an entry atomically.
type Store interface {
	Put(ctx context.Context, ch *entity.CaptchaChallenge, ttl time.Duration) error
	Take(ctx context.Context, id string) (*entity.CaptchaChallenge, error)
}

type Config struct {
	Length int
	TTL    time.Duration
	Grace  time.Duration
}

type Issuer struct {
	store Store
	clock clock.Clock
	conf  Config
	log   *slog.Logger
}

func New(store Store, clk clock.Clock, conf Config, log *slog.Logger) *Issuer {
	if conf.Length <= 0 {
		conf.Length = 5
	}
	if conf.TTL <= 0 {
		conf.TTL = 5 * time.Minute
	}
	if conf.Grace < 0 {
		conf.Grace = 0
	}
	return &Issuer{
		store: store,
		clock: clk,
		conf:  conf,
		log:   log.With(sl.Module("captcha")),
	}
}

// Issue creates a challenge and returns its id, rendered image and lifetime.
func (i *Issuer) Issue(ctx context.Context) (*entity.CaptchaView, error) {
	view, _, err := i.issue(ctx)
	return view, err
}

func (i *Issuer) issue(ctx context.Context) (*entity.CaptchaView, string, error) {
	text, err := randomText(i.conf.Length)
	if err != nil {
		return nil, "", fmt.Errorf("captcha text: %w", err)
	}
	image, err := Render(text)
	if err != nil {
		return nil, "", fmt.Errorf("captcha render: %w", err)
	}
	challenge := &entity.CaptchaChallenge{
		ID:        idx.New(),
		Text:      text,
		ExpiresAt: i.clock.Now().Add(i.conf.TTL),
	}
	if err = i.store.Put(ctx, challenge, i.conf.TTL+i.conf.Grace); err != nil {
		return nil, "", fmt.Errorf("captcha store: %w", err)
	}
	i.log.Debug("challenge issued", slog.String("id", challenge.ID))
	return &entity.CaptchaView{
		ID:               challenge.ID,
		SvgData:          image,
		ExpiresInSeconds: int(i.conf.TTL / time.Second),
	}, text, nil
}

// Consume checks the answer and destroys the challenge whatever the outcome.
func (i *Issuer) Consume(ctx context.Context, id, answer string) error {
	challenge, err := i.store.Take(ctx, id)
	if err != nil {
		return fmt.Errorf("captcha store: %w", err)
	}
	if challenge == nil || i.clock.Now().After(challenge.ExpiresAt) {
		return ErrChallengeExpired
	}
	if !strings.EqualFold(strings.TrimSpace(answer), challenge.Text) {
		return ErrChallengeMismatch
	}
	return nil
}

func randomText(length int) (string, error) {
	limit := big.NewInt(int64(len(Charset)))
	b := make([]byte, length)
	for n := range b {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[n] = Charset[v.Int64()]
	}
	return string(b), nil
}
