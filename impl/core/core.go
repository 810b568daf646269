package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"alphagate/entity"
	"alphagate/impl/captcha"
	"alphagate/internal/mailer"
	"alphagate/lib/apperr"
	"alphagate/lib/clock"
	"alphagate/lib/sl"
	"alphagate/lib/validate"
)

const notifyTimeout = 30 * time.Second

type Database interface {
	SaveLoginRecord(ctx context.Context, record *entity.LoginRecord) error
	ListLoginRecords(ctx context.Context) ([]*entity.LoginRecord, error)
	SaveAccessRequest(ctx context.Context, request *entity.AccessRequest) error
	ListAccessRequests(ctx context.Context) ([]*entity.AccessRequest, error)
	ListPendingAccessRequests(ctx context.Context) ([]*entity.AccessRequest, error)
	SaveBooking(ctx context.Context, booking *entity.Booking) error
}

type CaptchaService interface {
	Issue(ctx context.Context) (*entity.CaptchaView, error)
	Consume(ctx context.Context, id, answer string) error
}

type Registry interface {
	Issue(ctx context.Context, spec *entity.IssueSpec, issuedBy *entity.Principal) (*entity.AccessCode, error)
	Redeem(ctx context.Context, code string) (bool, error)
	Approve(ctx context.Context, requestId string, approver *entity.Principal) (*entity.AccessCode, *entity.AccessRequest, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Verify(token string) (*entity.Principal, error)
}

type Exporter interface {
	Write(ctx context.Context, w io.Writer) error
}

// Notifier delivers email; failures are logged and never reach the caller.
type Notifier interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// Listener receives domain events, e.g. the Telegram bot.
type Listener interface {
	AccessRequested(request *entity.AccessRequest)
	LoginAttempted(record *entity.LoginRecord)
}

type Core struct {
	db          Database
	captcha     CaptchaService
	registry    Registry
	auth        AuthService
	exporter    Exporter
	mail        Notifier
	listener    Listener
	bookingCode string
	clock       clock.Clock
	pending     sync.WaitGroup
	log         *slog.Logger
}

func New(db Database, cs CaptchaService, registry Registry, auth AuthService, clk clock.Clock, log *slog.Logger) *Core {
	if db == nil || cs == nil || registry == nil || auth == nil {
		panic("core: missing dependency")
	}
	return &Core{
		db:       db,
		captcha:  cs,
		registry: registry,
		auth:     auth,
		mail:     mailer.Noop{},
		clock:    clk,
		log:      log.With(sl.Module("core")),
	}
}

func (c *Core) SetNotifier(mail Notifier) {
	c.mail = mail
}

func (c *Core) SetListener(listener Listener) {
	c.listener = listener
}

func (c *Core) SetExporter(exporter Exporter) {
	c.exporter = exporter
}

func (c *Core) SetBookingCode(code string) {
	c.bookingCode = code
}

// Drain waits for outstanding notifications, bounded by ctx.
func (c *Core) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.log.Warn("notifications still pending at shutdown")
	}
}

func (c *Core) background(name string, fn func(ctx context.Context) error) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			c.log.Warn("notification failed", slog.String("kind", name), sl.Err(err))
		}
	}()
}

func (c *Core) notify(to string, msg mailer.Message) {
	if to == "" {
		return
	}
	c.background("email", func(ctx context.Context) error {
		return c.mail.Send(ctx, to, msg.Subject, msg.Body)
	})
}

func (c *Core) IssueCaptcha(ctx context.Context) (*entity.CaptchaView, error) {
	view, err := c.captcha.Issue(ctx)
	if err != nil {
		c.log.Error("issue captcha", sl.Err(err))
		return nil, apperr.Internal("issue captcha", err)
	}
	return view, nil
}

// Login runs the gated login: validate, consume captcha, redeem, record.
// Captcha failures stop before anything is written; a rejected code is recorded
// and reported through AlphaAccepted.
func (c *Core) Login(ctx context.Context, req *entity.LoginRequest, ip string) (*entity.LoginResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	log := c.log.With(
		sl.Email("email", req.Email),
		sl.Secret("alpha_code", req.AlphaCode),
		slog.String("ip", ip),
	)

	if err := c.captcha.Consume(ctx, req.CaptchaId, req.CaptchaAnswer); err != nil {
		switch {
		case errors.Is(err, captcha.ErrChallengeExpired):
			log.Debug("login: captcha expired")
			return nil, apperr.Captcha("Captcha expired")
		case errors.Is(err, captcha.ErrChallengeMismatch):
			log.Debug("login: captcha mismatch")
			return nil, apperr.Captcha("Captcha invalid")
		default:
			log.Error("login: consume captcha", sl.Err(err))
			return nil, apperr.Internal("consume captcha", err)
		}
	}

	accepted, err := c.registry.Redeem(ctx, req.AlphaCode)
	if err != nil {
		log.Error("login: redeem", sl.Err(err))
		return nil, err
	}

	record := &entity.LoginRecord{
		Name:        req.Name,
		CountryCode: req.CountryCode,
		Mobile:      req.Mobile,
		Email:       req.Email,
		City:        req.City,
		AlphaCode:   req.AlphaCode,
		CaptchaId:   req.CaptchaId,
		Accepted:    accepted,
		IP:          ip,
		CreatedAt:   c.clock.Now(),
	}
	if err = c.db.SaveLoginRecord(ctx, record); err != nil {
		if accepted {
			// the code is spent; this line is the only trace of who spent it
			log.Error("login: code redeemed but login record not saved",
				slog.String("name", req.Name),
				slog.String("mobile", req.CountryCode+req.Mobile),
				slog.String("captcha_id", req.CaptchaId),
				slog.Time("redeemed_at", record.CreatedAt),
				sl.Err(err),
			)
		} else {
			log.Error("login: save record", slog.Bool("accepted", accepted), sl.Err(err))
		}
		return nil, apperr.Internal("save login record", err)
	}
	log.Info("login recorded", slog.Bool("accepted", accepted))

	if c.listener != nil {
		c.listener.LoginAttempted(record)
	}

	result := &entity.LoginResult{
		Success:       true,
		AlphaAccepted: accepted,
		Message:       entity.MessageCodeRejected,
	}
	if accepted {
		result.Message = entity.MessageCodeAccepted
	}
	return result, nil
}

func (c *Core) RequestPass(ctx context.Context, req *entity.AccessRequest) error {
	if err := validate.Struct(req); err != nil {
		return apperr.Validation(err.Error())
	}
	req.Approved = false
	req.AlphaCodeID = nil
	req.ApprovedBy = ""
	req.ApprovedAt = nil
	req.CreatedAt = c.clock.Now()
	if err := c.db.SaveAccessRequest(ctx, req); err != nil {
		c.log.Error("save access request", sl.Err(err))
		return apperr.Internal("save access request", err)
	}
	c.log.Info("access request saved", slog.String("id", req.ID.Hex()), sl.Email("email", req.Email))

	c.notify(req.Email, mailer.RequestReceivedMessage(req.Name))
	if c.listener != nil {
		saved := *req
		c.background("listener", func(_ context.Context) error {
			c.listener.AccessRequested(&saved)
			return nil
		})
	}
	return nil
}

func (c *Core) AdminLogin(ctx context.Context, credentials *entity.AdminCredentials) (string, error) {
	return c.auth.Login(ctx, credentials.Email, credentials.Password)
}

func (c *Core) AuthenticateByToken(token string) (*entity.Principal, error) {
	return c.auth.Verify(token)
}

func (c *Core) AccessRequests(ctx context.Context) ([]*entity.AccessRequest, error) {
	requests, err := c.db.ListAccessRequests(ctx)
	if err != nil {
		return nil, apperr.Internal("list access requests", err)
	}
	return requests, nil
}

func (c *Core) PendingAccessRequests(ctx context.Context) ([]*entity.AccessRequest, error) {
	requests, err := c.db.ListPendingAccessRequests(ctx)
	if err != nil {
		return nil, apperr.Internal("list pending access requests", err)
	}
	return requests, nil
}

func (c *Core) LoginRecords(ctx context.Context) ([]*entity.LoginRecord, error) {
	records, err := c.db.ListLoginRecords(ctx)
	if err != nil {
		return nil, apperr.Internal("list login records", err)
	}
	return records, nil
}

func (c *Core) ApproveRequest(ctx context.Context, id string, approver *entity.Principal) (*entity.AccessCode, error) {
	if approver == nil {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	code, request, err := c.registry.Approve(ctx, id, approver)
	if err != nil {
		return nil, err
	}
	c.notify(request.Email, mailer.AccessCodeMessage(request.Name, code.Code, code.ExpiresAt))
	return code, nil
}

// GenerateCode issues an ad-hoc code; every call creates a new one.
func (c *Core) GenerateCode(ctx context.Context, spec *entity.IssueSpec, issuer *entity.Principal) (*entity.AccessCode, error) {
	if issuer == nil {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	if err := validate.Struct(spec); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	code, err := c.registry.Issue(ctx, spec, issuer)
	if err != nil {
		return nil, err
	}
	c.notify(code.IssuedToEmail, mailer.AccessCodeMessage("", code.Code, code.ExpiresAt))
	return code, nil
}

func (c *Core) Export(ctx context.Context, w io.Writer) error {
	if c.exporter == nil {
		return apperr.Internal("export", errors.New("exporter not connected"))
	}
	if err := c.exporter.Write(ctx, w); err != nil {
		c.log.Error("export", sl.Err(err))
		return apperr.Internal("export", err)
	}
	return nil
}

// Book saves a booking if it carries the configured booking code.
func (c *Core) Book(ctx context.Context, booking *entity.Booking, ip string) error {
	if err := validate.Struct(booking); err != nil {
		return apperr.Validation(err.Error())
	}
	if c.bookingCode == "" ||
		subtle.ConstantTimeCompare([]byte(booking.BookingCode), []byte(c.bookingCode)) != 1 {
		c.log.Warn("booking: wrong code", slog.String("ip", ip))
		return apperr.Unauthorized("Invalid booking code")
	}
	booking.IP = ip
	booking.CreatedAt = c.clock.Now()
	if err := c.db.SaveBooking(ctx, booking); err != nil {
		c.log.Error("save booking", sl.Err(err))
		return apperr.Internal("save booking", err)
	}
	c.log.Info("booking saved", sl.Email("email", booking.Email), slog.String("date", booking.BookingDate))
	c.notify(booking.Email, mailer.BookingMessage(booking.Name, booking.BookingDate))
	return nil
}
