// Package registry owns the access code lifecycle: issue, redeem and approve.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alphagate/entity"
	"alphagate/lib/apperr"
	"alphagate/lib/clock"
	"alphagate/lib/sl"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	suffixLength = 8
	issueRetries = 3
)

type Repository interface {
	CreateAccessCode(ctx context.Context, code *entity.AccessCode) error
	RedeemAccessCode(ctx context.Context, code string, now time.Time) (bool, error)
	GetAccessRequest(ctx context.Context, id string) (*entity.AccessRequest, error)
	ApproveAccessRequest(ctx context.Context, id string, codeId primitive.ObjectID, approvedBy string, at time.Time) (bool, error)
}

type Registry struct {
	repo   Repository
	clock  clock.Clock
	prefix string
	log    *slog.Logger
}

func New(repo Repository, clk clock.Clock, prefix string, log *slog.Logger) *Registry {
	return &Registry{
		repo:   repo,
		clock:  clk,
		prefix: prefix,
		log:    log.With(sl.Module("registry")),
	}
}

func (r *Registry) newCode() string {
	return r.prefix + uuid.New().String()[:suffixLength]
}

// Issue persists a new code; a unique index on the code value backs the random suffix.
func (r *Registry) Issue(ctx context.Context, spec *entity.IssueSpec, issuedBy *entity.Principal) (*entity.AccessCode, error) {
	now := r.clock.Now()
	code := &entity.AccessCode{
		SingleUse:      spec.IsSingleUse(),
		IssuedToEmail:  spec.IssuedToEmail,
		IssuedToMobile: spec.IssuedToMobile,
		IssuedAt:       now,
		ExpiresAt:      spec.ExpiresAt(now),
		IssuedBy:       issuedBy.Identity(),
		Note:           spec.Note,
	}

	var err error
	for attempt := 0; attempt < issueRetries; attempt++ {
		code.ID = primitive.NilObjectID
		code.Code = r.newCode()
		err = r.repo.CreateAccessCode(ctx, code)
		if err == nil {
			r.log.With(
				sl.Secret("code", code.Code),
				slog.Bool("single_use", code.SingleUse),
				slog.String("issued_by", code.IssuedBy),
			).Info("access code issued")
			return code, nil
		}
		if !errors.Is(err, entity.ErrDuplicate) {
			break
		}
		r.log.Warn("access code collision, retrying", slog.Int("attempt", attempt+1))
	}
	return nil, apperr.Internal("issue access code", err)
}

// Redeem reports whether the code is currently valid and consumes it if single-use.
// A rejected code is a normal outcome, not an error.
func (r *Registry) Redeem(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	accepted, err := r.repo.RedeemAccessCode(ctx, code, r.clock.Now())
	if err != nil {
		return false, apperr.Internal("redeem access code", err)
	}
	return accepted, nil
}

// Approve issues a code for the request and only then marks the request approved,
// so a failure in between leaves an unreferenced code rather than an approved
// request without one.
func (r *Registry) Approve(ctx context.Context, requestId string, approver *entity.Principal) (*entity.AccessCode, *entity.AccessRequest, error) {
	log := r.log.With(slog.String("access_request", requestId), slog.String("approver", approver.Identity()))

	request, err := r.repo.GetAccessRequest(ctx, requestId)
	if err != nil {
		return nil, nil, apperr.Internal("load access request", err)
	}
	if request == nil {
		return nil, nil, apperr.NotFound("Request not found")
	}
	if request.Approved {
		return nil, nil, apperr.AlreadyApproved("Already approved")
	}

	code, err := r.Issue(ctx, &entity.IssueSpec{
		IssuedToEmail:  request.Email,
		IssuedToMobile: request.FullMobile(),
		Note:           fmt.Sprintf("access request %s", requestId),
	}, approver)
	if err != nil {
		return nil, nil, err
	}

	now := r.clock.Now()
	ok, err := r.repo.ApproveAccessRequest(ctx, requestId, code.ID, approver.Identity(), now)
	if err != nil {
		log.Error("mark request approved; code left unreferenced", sl.Secret("code", code.Code), sl.Err(err))
		return nil, nil, apperr.Internal("approve access request", err)
	}
	if !ok {
		log.Warn("request approved concurrently; code left unreferenced", sl.Secret("code", code.Code))
		return nil, nil, apperr.AlreadyApproved("Already approved")
	}

	request.Approved = true
	request.AlphaCodeID = &code.ID
	request.ApprovedBy = approver.Identity()
	request.ApprovedAt = &now
	log.Info("access request approved")
	return code, request, nil
}
