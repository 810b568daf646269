package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"alphagate/entity"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory keeps every collection in process. It mirrors the MongoDB semantics,
// including the unique code constraint and the conditional redeem/approve updates.
type Memory struct {
	mu       sync.Mutex
	codes    map[string]entity.AccessCode
	requests map[primitive.ObjectID]entity.AccessRequest
	logins   []entity.LoginRecord
	admins   map[string]entity.AdminUser
	bookings []entity.Booking
}

func NewMemory() *Memory {
	return &Memory{
		codes:    make(map[string]entity.AccessCode),
		requests: make(map[primitive.ObjectID]entity.AccessRequest),
		admins:   make(map[string]entity.AdminUser),
	}
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}

func (m *Memory) CreateAccessCode(_ context.Context, code *entity.AccessCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[code.Code]; ok {
		return entity.ErrDuplicate
	}
	if code.ID.IsZero() {
		code.ID = primitive.NewObjectID()
	}
	m.codes[code.Code] = *code
	return nil
}

func (m *Memory) RedeemAccessCode(_ context.Context, code string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.codes[code]
	if !ok || !stored.Redeemable(now) {
		return false, nil
	}
	if stored.SingleUse {
		stored.Used = true
		usedAt := now
		stored.UsedAt = &usedAt
		m.codes[code] = stored
	}
	return true, nil
}

func (m *Memory) GetAccessCode(_ context.Context, code string) (*entity.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

func (m *Memory) ListAccessCodes(_ context.Context) ([]*entity.AccessCode, error) {
	m.mu.Lock()
	codes := make([]*entity.AccessCode, 0, len(m.codes))
	for _, c := range m.codes {
		c := c
		codes = append(codes, &c)
	}
	m.mu.Unlock()
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i].IssuedAt.After(codes[j].IssuedAt)
	})
	return codes, nil
}

func (m *Memory) SaveAccessRequest(_ context.Context, request *entity.AccessRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	if _, ok := m.requests[request.ID]; ok {
		return entity.ErrDuplicate
	}
	m.requests[request.ID] = *request
	return nil
}

func (m *Memory) GetAccessRequest(_ context.Context, id string) (*entity.AccessRequest, error) {
	objectId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[objectId]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

func (m *Memory) ApproveAccessRequest(_ context.Context, id string, codeId primitive.ObjectID, approvedBy string, at time.Time) (bool, error) {
	objectId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[objectId]
	if !ok || stored.Approved {
		return false, nil
	}
	stored.Approved = true
	stored.AlphaCodeID = &codeId
	stored.ApprovedBy = approvedBy
	approvedAt := at
	stored.ApprovedAt = &approvedAt
	m.requests[objectId] = stored
	return true, nil
}

func (m *Memory) ListAccessRequests(_ context.Context) ([]*entity.AccessRequest, error) {
	return m.filterAccessRequests(func(*entity.AccessRequest) bool { return true }), nil
}

func (m *Memory) ListPendingAccessRequests(_ context.Context) ([]*entity.AccessRequest, error) {
	return m.filterAccessRequests(func(r *entity.AccessRequest) bool { return !r.Approved }), nil
}

func (m *Memory) filterAccessRequests(keep func(*entity.AccessRequest) bool) []*entity.AccessRequest {
	m.mu.Lock()
	requests := make([]*entity.AccessRequest, 0, len(m.requests))
	for _, r := range m.requests {
		r := r
		if keep(&r) {
			requests = append(requests, &r)
		}
	}
	m.mu.Unlock()
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests
}

func (m *Memory) SaveLoginRecord(_ context.Context, record *entity.LoginRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	m.logins = append(m.logins, *record)
	return nil
}

func (m *Memory) ListLoginRecords(_ context.Context) ([]*entity.LoginRecord, error) {
	m.mu.Lock()
	records := make([]*entity.LoginRecord, 0, len(m.logins))
	for i := len(m.logins) - 1; i >= 0; i-- {
		r := m.logins[i]
		records = append(records, &r)
	}
	m.mu.Unlock()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (m *Memory) GetAdminByEmail(_ context.Context, email string) (*entity.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	admin, ok := m.admins[email]
	if !ok {
		return nil, nil
	}
	return &admin, nil
}

func (m *Memory) CreateAdmin(_ context.Context, admin *entity.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[admin.Email]; ok {
		return entity.ErrDuplicate
	}
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	m.admins[admin.Email] = *admin
	return nil
}

func (m *Memory) SaveBooking(_ context.Context, booking *entity.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	m.bookings = append(m.bookings, *booking)
	return nil
}

func (m *Memory) ListBookings(_ context.Context) ([]*entity.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bookings := make([]*entity.Booking, 0, len(m.bookings))
	for i := range m.bookings {
		b := m.bookings[i]
		bookings = append(bookings, &b)
	}
	return bookings, nil
}
