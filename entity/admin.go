package entity

import (
	"net/http"
	"strings"
	"time"

	"alphagate/lib/validate"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminUser struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email        string             `json:"email" bson:"email"`
	Name         string             `json:"name" bson:"name"`
	PasswordHash string             `json:"-" bson:"password_hash"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
}

// AdminCredentials accepts either email or username as the login name.
type AdminCredentials struct {
	Email    string `json:"email" validate:"required,max=200"`
	Username string `json:"username,omitempty"`
	Password string `json:"password" validate:"required,max=200"`
}

func (a *AdminCredentials) Bind(_ *http.Request) error {
	if a.Email == "" {
		a.Email = a.Username
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	return validate.Struct(a)
}

// Principal is the verified identity of an admin, produced by token verification.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identity is what gets stored in issuedBy/approvedBy.
func (p *Principal) Identity() string {
	if p == nil {
		return ""
	}
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}

type TokenResponse struct {
	Token string `json:"token"`
}
