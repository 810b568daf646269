package entity

import (
	"net/http"
	"strings"
	"time"

	"alphagate/lib/validate"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MessageCodeAccepted = "Alpha code accepted"
	MessageCodeRejected = "Alpha code invalid/pending"
)

// LoginRequest is a gated login submission. Every field is required.
type LoginRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	CountryCode   string `json:"countryCode" validate:"required,callcode"`
	Mobile        string `json:"mobile" validate:"required,max=32"`
	Email         string `json:"email" validate:"required,email"`
	City          string `json:"city" validate:"required,max=100"`
	AlphaCode     string `json:"alphaCode" validate:"required,max=100"`
	CaptchaId     string `json:"captchaId" validate:"required"`
	CaptchaAnswer string `json:"captchaAnswer" validate:"required"`
}

func (l *LoginRequest) Bind(_ *http.Request) error {
	l.Name = strings.TrimSpace(l.Name)
	l.CountryCode = strings.TrimSpace(l.CountryCode)
	l.Mobile = strings.TrimSpace(l.Mobile)
	l.Email = strings.TrimSpace(l.Email)
	l.City = strings.TrimSpace(l.City)
	l.AlphaCode = strings.TrimSpace(l.AlphaCode)
	l.CaptchaId = strings.TrimSpace(l.CaptchaId)
	return validate.Struct(l)
}

// LoginRecord is the immutable audit entry written for every login that passed the captcha.
type LoginRecord struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	CountryCode string             `json:"countryCode" bson:"country_code"`
	Mobile      string             `json:"mobile" bson:"mobile"`
	Email       string             `json:"email" bson:"email"`
	City        string             `json:"city" bson:"city"`
	AlphaCode   string             `json:"alphaCode" bson:"alpha_code"`
	CaptchaId   string             `json:"captchaId" bson:"captcha_id"`
	Accepted    bool               `json:"accepted" bson:"accepted"`
	IP          string             `json:"ip" bson:"ip"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
}

type LoginResult struct {
	Success       bool   `json:"success"`
	AlphaAccepted bool   `json:"alphaAccepted"`
	Message       string `json:"message"`
}
