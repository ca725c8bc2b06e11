package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-devices/core"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDevicesCollection = "devices"
	DefaultUsersCollection   = "users"
)

type Option func(*Store)

func WithDevicesCollection(name string) Option {
	return func(s *Store) {
		if name = strings.TrimSpace(name); name != "" {
			s.devicesName = name
		}
	}
}

func WithUsersCollection(name string) Option {
	return func(s *Store) {
		if name = strings.TrimSpace(name); name != "" {
			s.usersName = name
		}
	}
}

// WithTransactions runs claim and release inside a multi-document
// transaction. The deployment must be a replica set or sharded cluster.
func WithTransactions(enabled bool) Option {
	return func(s *Store) {
		s.transactions = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store keeps devices and users in two collections. Without transactions the
// conditional device update decides the claim and the user write follows it.
type Store struct {
	db           *mongo.Database
	devicesName  string
	usersName    string
	transactions bool
	now          func() time.Time
}

func New(db *mongo.Database, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("mongostore: database is required")
	}
	store := &Store{
		db:          db,
		devicesName: DefaultDevicesCollection,
		usersName:   DefaultUsersCollection,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *Store) DeviceStore() core.DeviceStore { return s }
func (s *Store) UserStore() core.UserStore     { return s }
func (s *Store) ClaimStore() core.ClaimStore   { return s }

// EnsureIndexes creates the owner listing index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.devices().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldOwnerID, Value: 1}, {Key: fieldClaimedAt, Value: 1}},
		Options: options.Index().SetName("idx_devices_owner_claimed_at"),
	})
	if err != nil {
		return fmt.Errorf("mongostore: ensure indexes: %w", err)
	}
	return nil
}

func (s *Store) GetDevice(ctx context.Context, id string) (core.Device, error) {
	if err := s.ready(); err != nil {
		return core.Device{}, err
	}
	doc, err := s.findDevice(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Device{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) CreateDevice(ctx context.Context, in core.CreateDeviceInput) (core.Device, error) {
	if err := s.ready(); err != nil {
		return core.Device{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	doc := newDeviceDocument(in, id, s.clock())
	if _, err := s.devices().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.Device{}, core.ErrDeviceExists
		}
		return core.Device{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) ListDevicesByOwner(ctx context.Context, ownerID string) ([]core.Device, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return []core.Device{}, nil
	}
	cursor, err := s.devices().Find(ctx,
		bson.D{{Key: fieldOwnerID, Value: ownerID}},
		options.Find().SetSort(ownerDevicesSort()),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []core.Device{}
	for cursor.Next(ctx) {
		var doc deviceDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReplaceClaimCode(ctx context.Context, deviceID string, code string) (core.Device, error) {
	if err := s.ready(); err != nil {
		return core.Device{}, err
	}
	deviceID = strings.TrimSpace(deviceID)
	var doc deviceDocument
	err := s.devices().FindOneAndUpdate(ctx,
		replaceCodeFilter(deviceID),
		replaceCodeUpdate(code, s.clock()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, findErr := s.findDevice(ctx, deviceID); findErr != nil {
			return core.Device{}, findErr
		}
		return core.Device{}, core.ErrDeviceClaimed
	}
	if err != nil {
		return core.Device{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	if err := s.ready(); err != nil {
		return core.User{}, err
	}
	var doc userDocument
	err := s.users().FindOne(ctx, bson.D{{Key: fieldID, Value: strings.TrimSpace(id)}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) MergeUser(ctx context.Context, in core.MergeUserInput) (core.User, error) {
	if err := s.ready(); err != nil {
		return core.User{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return core.User{}, fmt.Errorf("mongostore: user id is required")
	}
	var doc userDocument
	err := s.users().FindOneAndUpdate(ctx,
		bson.D{{Key: fieldID, Value: id}},
		mergeUserUpdate(in, s.clock()),
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return core.User{}, err
	}
	return doc.toDomain(), nil
}

func (s *Store) ClaimDevice(ctx context.Context, in core.ClaimDeviceInput) (core.ClaimOutcome, error) {
	if err := s.ready(); err != nil {
		return core.ClaimOutcome{}, err
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return core.ClaimOutcome{}, fmt.Errorf("mongostore: owner id is required")
	}
	var out core.ClaimOutcome
	err := s.inTransaction(ctx, func(ctx context.Context) error {
		outcome, err := s.claim(ctx, in)
		if err != nil {
			return err
		}
		out = outcome
		return nil
	})
	return out, err
}

func (s *Store) ReleaseDevice(ctx context.Context, in core.ReleaseDeviceInput) (core.Device, error) {
	if err := s.ready(); err != nil {
		return core.Device{}, err
	}
	var out core.Device
	err := s.inTransaction(ctx, func(ctx context.Context) error {
		device, err := s.release(ctx, in)
		if err != nil {
			return err
		}
		out = device
		return nil
	})
	return out, err
}

func (s *Store) claim(ctx context.Context, in core.ClaimDeviceInput) (core.ClaimOutcome, error) {
	deviceID := in.DeviceID
	ownerID := strings.TrimSpace(in.OwnerID)

	current, err := s.findDevice(ctx, deviceID)
	if err != nil {
		return core.ClaimOutcome{}, err
	}
	if current.OwnerID != "" || !core.ClaimCodesEqual(current.ClaimCode, in.ClaimCode) {
		return core.ClaimOutcome{}, core.ErrClaimCodeMismatch
	}

	now := s.clock()
	var device deviceDocument
	err = s.devices().FindOneAndUpdate(ctx,
		claimFilter(deviceID, current.ClaimCode),
		claimUpdate(ownerID, now),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ClaimOutcome{}, core.ErrClaimCodeMismatch
	}
	if err != nil {
		return core.ClaimOutcome{}, err
	}

	var user userDocument
	err = s.users().FindOneAndUpdate(ctx,
		bson.D{{Key: fieldID, Value: ownerID}},
		userClaimUpdate(deviceID, in.OwnerName, now),
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return core.ClaimOutcome{}, err
	}
	return core.ClaimOutcome{Device: device.toDomain(), User: user.toDomain()}, nil
}

func (s *Store) release(ctx context.Context, in core.ReleaseDeviceInput) (core.Device, error) {
	deviceID := strings.TrimSpace(in.DeviceID)
	ownerID := strings.TrimSpace(in.OwnerID)
	now := s.clock()

	var device deviceDocument
	err := s.devices().FindOneAndUpdate(ctx,
		releaseFilter(deviceID, ownerID),
		releaseUpdate(in.NextClaimCode, now),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, findErr := s.findDevice(ctx, deviceID); findErr != nil {
			return core.Device{}, findErr
		}
		return core.Device{}, core.ErrDeviceNotOwned
	}
	if err != nil {
		return core.Device{}, err
	}

	if _, err := s.users().UpdateOne(ctx,
		userReleaseFilter(ownerID, deviceID),
		userReleaseUpdate(now),
	); err != nil {
		return core.Device{}, err
	}
	return device.toDomain(), nil
}

func (s *Store) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("mongostore: start session: %w", err)
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	return err
}

func (s *Store) findDevice(ctx context.Context, id string) (deviceDocument, error) {
	var doc deviceDocument
	if id == "" {
		return doc, core.ErrDeviceNotFound
	}
	err := s.devices().FindOne(ctx, bson.D{{Key: fieldID, Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, core.ErrDeviceNotFound
	}
	return doc, err
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("mongostore: store is not configured")
	}
	return nil
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *Store) devices() *mongo.Collection {
	return s.db.Collection(s.devicesName)
}

func (s *Store) users() *mongo.Collection {
	return s.db.Collection(s.usersName)
}

var (
	_ core.Store         = (*Store)(nil)
	_ core.StoreProvider = (*Store)(nil)
)
