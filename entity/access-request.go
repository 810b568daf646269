package entity

import (
	"net/http"
	"strings"
	"time"

	"alphagate/lib/validate"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Questions struct {
	Q1  string `json:"q1" bson:"q1" validate:"required"`
	Q2  string `json:"q2" bson:"q2" validate:"required"`
	Q3  string `json:"q3" bson:"q3" validate:"required"`
	Q4  string `json:"q4" bson:"q4" validate:"required"`
	Q5  string `json:"q5" bson:"q5" validate:"required"`
	Q6  string `json:"q6" bson:"q6" validate:"required"`
	Q7  string `json:"q7" bson:"q7" validate:"required"`
	Q8  string `json:"q8" bson:"q8" validate:"required"`
	Q9  string `json:"q9" bson:"q9" validate:"required"`
	Q10 string `json:"q10" bson:"q10" validate:"required"`
}

// AccessRequest is an application for a code. Approval is a one-way transition.
type AccessRequest struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Name           string              `json:"name" bson:"name" validate:"required,max=200"`
	CountryCode    string              `json:"countryCode" bson:"country_code" validate:"required,callcode"`
	Mobile         string              `json:"mobile" bson:"mobile" validate:"required,max=32"`
	Email          string              `json:"email" bson:"email" validate:"required,email"`
	City           string              `json:"city,omitempty" bson:"city,omitempty"`
	Dob            string              `json:"dob,omitempty" bson:"dob,omitempty"`
	Gender         string              `json:"gender,omitempty" bson:"gender,omitempty"`
	Qualification  string              `json:"qualification,omitempty" bson:"qualification,omitempty"`
	Semester       string              `json:"semester,omitempty" bson:"semester,omitempty"`
	Specialization string              `json:"specialization,omitempty" bson:"specialization,omitempty"`
	Questions      Questions           `json:"questions" bson:"questions"`
	Approved       bool                `json:"approved" bson:"approved"`
	AlphaCodeID    *primitive.ObjectID `json:"alphaCodeId,omitempty" bson:"alpha_code_id,omitempty"`
	ApprovedBy     string              `json:"approvedBy,omitempty" bson:"approved_by,omitempty"`
	ApprovedAt     *time.Time          `json:"approvedAt,omitempty" bson:"approved_at,omitempty"`
	CreatedAt      time.Time           `json:"createdAt" bson:"created_at"`
}

func (r *AccessRequest) Bind(_ *http.Request) error {
	r.Name = strings.TrimSpace(r.Name)
	r.CountryCode = strings.TrimSpace(r.CountryCode)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.Email = strings.TrimSpace(r.Email)
	r.City = strings.TrimSpace(r.City)
	return validate.Struct(r)
}

// Mobile number the approval code is bound to.
func (r *AccessRequest) FullMobile() string {
	return r.CountryCode + r.Mobile
}
