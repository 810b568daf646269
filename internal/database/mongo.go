package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alphagate/entity"
	"alphagate/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionAccessCodes    = "access_codes"
	collectionAccessRequests = "access_requests"
	collectionLoginRecords   = "login_records"
	collectionAdminUsers     = "admin_users"
	collectionBookings       = "bookings"
)

type MongoDB struct {
	client   *mongo.Client
	database string
}

func connectionOptions(conf *config.Config) *options.ClientOptions {
	connectionUri := conf.Mongo.URI
	if connectionUri == "" {
		connectionUri = fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	}
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return clientOptions
}

// NewMongoClient connects, pings and ensures the indexes the registry relies on.
func NewMongoClient(ctx context.Context, conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, fmt.Errorf("mongodb is disabled")
	}
	client, err := mongo.Connect(ctx, connectionOptions(conf))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	m := &MongoDB{
		client:   client,
		database: conf.Mongo.Database,
	}
	if err = m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	_, err := m.collection(collectionAccessCodes).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"code", 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb index %s: %w", collectionAccessCodes, err)
	}
	_, err = m.collection(collectionAdminUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"email", 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb index %s: %w", collectionAdminUsers, err)
	}
	for _, name := range []string{collectionLoginRecords, collectionAccessRequests} {
		_, err = m.collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{"created_at", -1}},
		})
		if err != nil {
			return fmt.Errorf("mongodb index %s: %w", name, err)
		}
	}
	return nil
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func insertError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicate
	}
	return fmt.Errorf("mongodb insert: %w", err)
}

func notExpired(now time.Time) bson.A {
	return bson.A{
		bson.D{{"expires_at", nil}},
		bson.D{{"expires_at", bson.D{{"$gt", now}}}},
	}
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{"created_at", -1}})
}

func (m *MongoDB) CreateAccessCode(ctx context.Context, code *entity.AccessCode) error {
	if code.ID.IsZero() {
		code.ID = primitive.NewObjectID()
	}
	_, err := m.collection(collectionAccessCodes).InsertOne(ctx, code)
	if err != nil {
		return insertError(err)
	}
	return nil
}

// RedeemAccessCode accepts a code in a single conditional update for single-use codes,
// so concurrent redemptions of one code can match at most once.
func (m *MongoDB) RedeemAccessCode(ctx context.Context, code string, now time.Time) (bool, error) {
	collection := m.collection(collectionAccessCodes)

	filter := bson.D{
		{"code", code},
		{"single_use", true},
		{"used", false},
		{"$or", notExpired(now)},
	}
	update := bson.D{{"$set", bson.D{
		{"used", true},
		{"used_at", now},
	}}}
	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongodb redeem: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	filter = bson.D{
		{"code", code},
		{"single_use", false},
		{"$or", notExpired(now)},
	}
	count, err := collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongodb redeem: %w", err)
	}
	return count > 0, nil
}

func (m *MongoDB) GetAccessCode(ctx context.Context, code string) (*entity.AccessCode, error) {
	var accessCode entity.AccessCode
	err := m.collection(collectionAccessCodes).FindOne(ctx, bson.D{{"code", code}}).Decode(&accessCode)
	if err != nil {
		return nil, m.findError(err)
	}
	return &accessCode, nil
}

func (m *MongoDB) ListAccessCodes(ctx context.Context) ([]*entity.AccessCode, error) {
	opts := options.Find().SetSort(bson.D{{"issued_at", -1}})
	cursor, err := m.collection(collectionAccessCodes).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	codes := make([]*entity.AccessCode, 0)
	if err = cursor.All(ctx, &codes); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return codes, nil
}

func (m *MongoDB) SaveAccessRequest(ctx context.Context, request *entity.AccessRequest) error {
	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	_, err := m.collection(collectionAccessRequests).InsertOne(ctx, request)
	if err != nil {
		return insertError(err)
	}
	return nil
}

// GetAccessRequest returns nil for unknown or malformed ids.
func (m *MongoDB) GetAccessRequest(ctx context.Context, id string) (*entity.AccessRequest, error) {
	objectId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var request entity.AccessRequest
	err = m.collection(collectionAccessRequests).FindOne(ctx, bson.D{{"_id", objectId}}).Decode(&request)
	if err != nil {
		return nil, m.findError(err)
	}
	return &request, nil
}

// ApproveAccessRequest flips approved only if it is still false; false means someone else won.
func (m *MongoDB) ApproveAccessRequest(ctx context.Context, id string, codeId primitive.ObjectID, approvedBy string, at time.Time) (bool, error) {
	objectId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	filter := bson.D{{"_id", objectId}, {"approved", false}}
	update := bson.D{{"$set", bson.D{
		{"approved", true},
		{"alpha_code_id", codeId},
		{"approved_by", approvedBy},
		{"approved_at", at},
	}}}
	res, err := m.collection(collectionAccessRequests).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongodb approve: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (m *MongoDB) ListAccessRequests(ctx context.Context) ([]*entity.AccessRequest, error) {
	return m.findAccessRequests(ctx, bson.D{})
}

func (m *MongoDB) ListPendingAccessRequests(ctx context.Context) ([]*entity.AccessRequest, error) {
	return m.findAccessRequests(ctx, bson.D{{"approved", false}})
}

func (m *MongoDB) findAccessRequests(ctx context.Context, filter bson.D) ([]*entity.AccessRequest, error) {
	cursor, err := m.collection(collectionAccessRequests).Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	requests := make([]*entity.AccessRequest, 0)
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return requests, nil
}

func (m *MongoDB) SaveLoginRecord(ctx context.Context, record *entity.LoginRecord) error {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	_, err := m.collection(collectionLoginRecords).InsertOne(ctx, record)
	if err != nil {
		return insertError(err)
	}
	return nil
}

func (m *MongoDB) ListLoginRecords(ctx context.Context) ([]*entity.LoginRecord, error) {
	cursor, err := m.collection(collectionLoginRecords).Find(ctx, bson.D{}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*entity.LoginRecord, 0)
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return records, nil
}

func (m *MongoDB) GetAdminByEmail(ctx context.Context, email string) (*entity.AdminUser, error) {
	var admin entity.AdminUser
	err := m.collection(collectionAdminUsers).FindOne(ctx, bson.D{{"email", email}}).Decode(&admin)
	if err != nil {
		return nil, m.findError(err)
	}
	return &admin, nil
}

func (m *MongoDB) CreateAdmin(ctx context.Context, admin *entity.AdminUser) error {
	if admin.ID.IsZero() {
		admin.ID = primitive.NewObjectID()
	}
	_, err := m.collection(collectionAdminUsers).InsertOne(ctx, admin)
	if err != nil {
		return insertError(err)
	}
	return nil
}

func (m *MongoDB) SaveBooking(ctx context.Context, booking *entity.Booking) error {
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	_, err := m.collection(collectionBookings).InsertOne(ctx, booking)
	if err != nil {
		return insertError(err)
	}
	return nil
}
