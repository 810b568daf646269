package entity

import (
	"net/http"
	"strings"
	"time"

	"alphagate/lib/validate"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name" validate:"required,max=200"`
	CountryCode string             `json:"countryCode" bson:"country_code" validate:"required,callcode"`
	Mobile      string             `json:"mobile" bson:"mobile" validate:"required,max=32"`
	Email       string             `json:"email" bson:"email" validate:"required,email"`
	BookingCode string             `json:"bookingCode" bson:"-" validate:"required"`
	BookingDate string             `json:"bookingDate" bson:"booking_date" validate:"required"`
	IP          string             `json:"ip,omitempty" bson:"ip"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
}

func (b *Booking) Bind(_ *http.Request) error {
	b.Name = strings.TrimSpace(b.Name)
	b.Email = strings.TrimSpace(b.Email)
	b.BookingCode = strings.TrimSpace(b.BookingCode)
	return validate.Struct(b)
}
