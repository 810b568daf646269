package entity

import (
	"net/http"
	"strings"
	"time"

	"alphagate/lib/validate"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessCode is an issued credential. It is created by approval or ad-hoc
// generation, mutated once on redemption and never deleted.
type AccessCode struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Code           string             `json:"code" bson:"code"`
	SingleUse      bool               `json:"singleUse" bson:"single_use"`
	IssuedToEmail  string             `json:"issuedToEmail,omitempty" bson:"issued_to_email,omitempty"`
	IssuedToMobile string             `json:"issuedToMobile,omitempty" bson:"issued_to_mobile,omitempty"`
	Used           bool               `json:"used" bson:"used"`
	IssuedAt       time.Time          `json:"issuedAt" bson:"issued_at"`
	UsedAt         *time.Time         `json:"usedAt,omitempty" bson:"used_at,omitempty"`
	ExpiresAt      *time.Time         `json:"expiresAt" bson:"expires_at"`
	IssuedBy       string             `json:"issuedBy,omitempty" bson:"issued_by,omitempty"`
	Note           string             `json:"note,omitempty" bson:"note,omitempty"`
}

func (c *AccessCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Redeemable reports whether a redemption at now would be accepted.
func (c *AccessCode) Redeemable(now time.Time) bool {
	if c.SingleUse && c.Used {
		return false
	}
	return !c.Expired(now)
}

// IssueSpec is the body of an ad-hoc generation request.
type IssueSpec struct {
	SingleUse      *bool  `json:"singleUse,omitempty"`
	IssuedToEmail  string `json:"issuedToEmail,omitempty" validate:"omitempty,email"`
	IssuedToMobile string `json:"issuedToMobile,omitempty" validate:"max=32"`
	ExpiresInDays  int    `json:"expiresInDays,omitempty" validate:"gte=0,lte=3650"`
	Note           string `json:"note,omitempty" validate:"max=500"`
}

func (s *IssueSpec) Bind(_ *http.Request) error {
	s.IssuedToEmail = strings.TrimSpace(s.IssuedToEmail)
	s.IssuedToMobile = strings.TrimSpace(s.IssuedToMobile)
	return validate.Struct(s)
}

// IsSingleUse defaults to true when the flag was not sent.
func (s *IssueSpec) IsSingleUse() bool {
	return s.SingleUse == nil || *s.SingleUse
}

// ExpiresAt converts the relative expiry into an absolute time; zero days means no expiry.
func (s *IssueSpec) ExpiresAt(now time.Time) *time.Time {
	if s.ExpiresInDays <= 0 {
		return nil
	}
	t := now.Add(time.Duration(s.ExpiresInDays) * 24 * time.Hour)
	return &t
}

type CodeResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
}
