package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// usersCollection is the Mongo collection holding user accounts.
const usersCollection = "users"

// User is a registered account. Password material and profile data are
// managed by external services; the core only needs the identity mapping.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Identity  string    `bson:"identity" json:"identity"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// UserStore defines the interface for user account lookups.
// This abstraction allows for different implementations (Mongo, mock, etc.)
// and enables unit testing without database dependencies.
type UserStore interface {
	// FindByIdentity retrieves a user by their identity string.
	// Returns ErrUserNotFound if no such user exists.
	FindByIdentity(ctx context.Context, identity string) (*User, error)

	// Create inserts a new user.
	// Returns ErrUserExists if the identity is already registered.
	Create(ctx context.Context, user *User) error
}

// MongoUserStore implements UserStore over the users collection.
type MongoUserStore struct {
	coll *mongo.Collection
}

// NewMongoUserStore creates a Mongo-backed user store.
func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{coll: db.Collection(usersCollection)}
}

// FindByIdentity retrieves a user by their identity string.
func (s *MongoUserStore) FindByIdentity(ctx context.Context, identity string) (*User, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.M{"identity": identity}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by identity: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. The identity field carries a unique index,
// created by EnsureIndexes at startup.
func (s *MongoUserStore) Create(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Identity)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// EnsureIndexes creates the unique identity index. Called once at startup.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identity", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating users identity index: %w", err)
	}
	return nil
}
