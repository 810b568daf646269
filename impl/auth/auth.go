// Package auth signs in administrators and verifies their bearer tokens.
package auth

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

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer       = "alphagate"
	passwordCost = bcrypt.DefaultCost
)

type Database interface {
	GetAdminByEmail(ctx context.Context, email string) (*entity.AdminUser, error)
	CreateAdmin(ctx context.Context, admin *entity.AdminUser) error
}

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

type Auth struct {
	db     Database
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	log    *slog.Logger
}

func New(db Database, secret string, ttl time.Duration, clk clock.Clock, log *slog.Logger) *Auth {
	return &Auth{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
		log:    log.With(sl.Module("auth")),
	}
}

// Login checks the credentials and returns a signed admin token.
func (a *Auth) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	log := a.log.With(sl.Email("email", email))

	admin, err := a.db.GetAdminByEmail(ctx, email)
	if err != nil {
		return "", apperr.Internal("load admin", err)
	}
	if admin == nil {
		log.Warn("admin login: unknown email")
		return "", apperr.Unauthorized("Invalid credentials")
	}
	if err = bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		log.Warn("admin login: wrong password")
		return "", apperr.Unauthorized("Invalid credentials")
	}

	token, err := a.Issue(&entity.Principal{
		ID:    admin.ID.Hex(),
		Email: admin.Email,
		Name:  admin.Name,
	})
	if err != nil {
		return "", apperr.Internal("sign token", err)
	}
	log.Info("admin logged in")
	return token, nil
}

func (a *Auth) Issue(p *entity.Principal) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("signing secret not configured")
	}
	now := a.clock.Now()
	claims := Claims{
		Email: p.Email,
		Name:  p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify turns a bearer token into the principal it was issued for.
func (a *Auth) Verify(token string) (*entity.Principal, error) {
	if len(a.secret) == 0 {
		return nil, apperr.Unauthorized("Authentication not configured")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.CodeUnauthorized, "Token expired", err)
		}
		return nil, apperr.Wrap(apperr.CodeUnauthorized, "Invalid token", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, apperr.Unauthorized("Invalid token")
	}
	return &entity.Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

// EnsureAdmin creates the bootstrap administrator unless one with that email exists.
func (a *Auth) EnsureAdmin(ctx context.Context, email, password, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	existing, err := a.db.GetAdminByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	err = a.db.CreateAdmin(ctx, &entity.AdminUser{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    a.clock.Now(),
	})
	if err != nil && !errors.Is(err, entity.ErrDuplicate) {
		return fmt.Errorf("create admin: %w", err)
	}
	a.log.Info("bootstrap admin created", sl.Email("email", email))
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
