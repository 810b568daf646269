package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"alphagate/entity"
	"alphagate/internal/database"
	"alphagate/lib/apperr"
	"alphagate/lib/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	start = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	admin = &entity.Principal{ID: "a1", Email: "root@alpha.io", Name: "Root"}
)

func newRegistry(repo Repository) (*Registry, *clock.Fake) {
	clk := clock.NewFake(start)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, clk, "alpha@", log), clk
}

func TestIssue(t *testing.T) {
	db := database.NewMemory()
	reg, _ := newRegistry(db)
	ctx := context.Background()

	code, err := reg.Issue(ctx, &entity.IssueSpec{IssuedToEmail: "jane@example.com", ExpiresInDays: 1, Note: "vip"}, admin)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(code.Code, "alpha@"))
	assert.Len(t, code.Code, len("alpha@")+8)
	assert.True(t, code.SingleUse)
	assert.Equal(t, "root@alpha.io", code.IssuedBy)
	require.NotNil(t, code.ExpiresAt)
	assert.Equal(t, start.Add(24*time.Hour), *code.ExpiresAt)

	stored, err := db.GetAccessCode(ctx, code.Code)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "vip", stored.Note)
}

func TestIssueIsRepeatable(t *testing.T) {
	reg, _ := newRegistry(database.NewMemory())
	a, err := reg.Issue(context.Background(), &entity.IssueSpec{}, admin)
	require.NoError(t, err)
	b, err := reg.Issue(context.Background(), &entity.IssueSpec{}, admin)
	require.NoError(t, err)
	assert.NotEqual(t, a.Code, b.Code)
}

type collidingRepo struct {
	*database.Memory
	failures int
	calls    int
}

func (c *collidingRepo) CreateAccessCode(ctx context.Context, code *entity.AccessCode) error {
	c.calls++
	if c.calls <= c.failures {
		return entity.ErrDuplicate
	}
	return c.Memory.CreateAccessCode(ctx, code)
}

func TestIssueRetriesOnCollision(t *testing.T) {
	repo := &collidingRepo{Memory: database.NewMemory(), failures: 2}
	reg, _ := newRegistry(repo)
	_, err := reg.Issue(context.Background(), &entity.IssueSpec{}, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)

	repo = &collidingRepo{Memory: database.NewMemory(), failures: 5}
	reg, _ = newRegistry(repo)
	_, err = reg.Issue(context.Background(), &entity.IssueSpec{}, admin)
	assert.True(t, apperr.Is(err, apperr.CodeInternal))
}

func TestRedeemSingleUse(t *testing.T) {
	db := database.NewMemory()
	reg, _ := newRegistry(db)
	ctx := context.Background()

	code, err := reg.Issue(ctx, &entity.IssueSpec{}, admin)
	require.NoError(t, err)

	ok, err := reg.Redeem(ctx, " "+code.Code+" ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Redeem(ctx, code.Code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = reg.Redeem(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedeemConcurrent(t *testing.T) {
	reg, _ := newRegistry(database.NewMemory())
	ctx := context.Background()
	code, err := reg.Issue(ctx, &entity.IssueSpec{}, admin)
	require.NoError(t, err)

	const n = 32
	results := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := reg.Redeem(ctx, code.Code)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for ok := range results {
		if ok {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

// Generate with a one day expiry, redeem the same day, retry, then jump past expiry.
func TestRedeemScenarioWithExpiry(t *testing.T) {
	db := database.NewMemory()
	reg, clk := newRegistry(db)
	ctx := context.Background()

	single, err := reg.Issue(ctx, &entity.IssueSpec{ExpiresInDays: 1}, admin)
	require.NoError(t, err)
	multi := false
	reusable, err := reg.Issue(ctx, &entity.IssueSpec{ExpiresInDays: 1, SingleUse: &multi}, admin)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	ok, err := reg.Redeem(ctx, single.Code)
	require.NoError(t, err)
	assert.True(t, ok)
	stored, _ := db.GetAccessCode(ctx, single.Code)
	assert.True(t, stored.Used)

	ok, err = reg.Redeem(ctx, single.Code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = reg.Redeem(ctx, reusable.Code)
	require.NoError(t, err)
	assert.True(t, ok)

	clk.Advance(24 * time.Hour)
	ok, err = reg.Redeem(ctx, reusable.Code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func saveRequest(t *testing.T, db *database.Memory) string {
	t.Helper()
	request := &entity.AccessRequest{
		Name:        "Jane",
		CountryCode: "+91",
		Mobile:      "9876543210",
		Email:       "jane@example.com",
		CreatedAt:   start,
	}
	require.NoError(t, db.SaveAccessRequest(context.Background(), request))
	return request.ID.Hex()
}

func TestApprove(t *testing.T) {
	db := database.NewMemory()
	reg, _ := newRegistry(db)
	ctx := context.Background()
	id := saveRequest(t, db)

	code, request, err := reg.Approve(ctx, id, admin)
	require.NoError(t, err)
	assert.True(t, code.SingleUse)
	assert.Equal(t, "jane@example.com", code.IssuedToEmail)
	assert.Equal(t, "+919876543210", code.IssuedToMobile)
	assert.True(t, request.Approved)

	stored, err := db.GetAccessRequest(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Approved)
	assert.Equal(t, code.ID, *stored.AlphaCodeID)
	assert.Equal(t, "root@alpha.io", stored.ApprovedBy)
}

func TestApproveTwice(t *testing.T) {
	db := database.NewMemory()
	reg, _ := newRegistry(db)
	ctx := context.Background()
	id := saveRequest(t, db)

	_, _, err := reg.Approve(ctx, id, admin)
	require.NoError(t, err)

	_, _, err = reg.Approve(ctx, id, admin)
	assert.True(t, apperr.Is(err, apperr.CodeAlreadyApproved))

	codes, err := db.ListAccessCodes(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, 1)
}

func TestApproveUnknown(t *testing.T) {
	reg, _ := newRegistry(database.NewMemory())
	_, _, err := reg.Approve(context.Background(), primitive.NewObjectID().Hex(), admin)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, _, err = reg.Approve(context.Background(), "garbage", admin)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

// racingRepo approves the request behind the registry's back between its read and its update.
type racingRepo struct {
	*database.Memory
}

func (r *racingRepo) CreateAccessCode(ctx context.Context, code *entity.AccessCode) error {
	if err := r.Memory.CreateAccessCode(ctx, code); err != nil {
		return err
	}
	requests, _ := r.Memory.ListPendingAccessRequests(ctx)
	for _, req := range requests {
		_, _ = r.Memory.ApproveAccessRequest(ctx, req.ID.Hex(), primitive.NewObjectID(), "other", start)
	}
	return nil
}

func TestApproveLosesRace(t *testing.T) {
	repo := &racingRepo{Memory: database.NewMemory()}
	reg, _ := newRegistry(repo)
	id := saveRequest(t, repo.Memory)

	_, _, err := reg.Approve(context.Background(), id, admin)
	assert.True(t, apperr.Is(err, apperr.CodeAlreadyApproved))

	stored, err := repo.GetAccessRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "other", stored.ApprovedBy)
}

type brokenRepo struct {
	*database.Memory
}

func (brokenRepo) RedeemAccessCode(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("connection reset")
}

func TestRedeemStorageFailure(t *testing.T) {
	reg, _ := newRegistry(brokenRepo{Memory: database.NewMemory()})
	_, err := reg.Redeem(context.Background(), "alpha@x")
	assert.True(t, apperr.Is(err, apperr.CodeInternal))
}
