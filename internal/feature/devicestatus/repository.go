package devicestatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collectionName holds one document per owner.
const collectionName = "device_status"

// Repository defines the interface for device status persistence.
// This abstraction allows for different implementations (MongoDB, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// EnsureOwner creates the owner's record with empty sub-collections
	// if it does not exist. Idempotent.
	EnsureOwner(ctx context.Context, owner string) error

	// EnsureDevice creates the device record under the owner if it does
	// not exist. Idempotent: an existing device is left untouched.
	EnsureDevice(ctx context.Context, owner, deviceID string, at time.Time) error

	// EnsureComponent creates the component record under the device if
	// it does not exist. Idempotent.
	// Returns ErrDeviceNotFound if the device does not exist.
	EnsureComponent(ctx context.Context, owner, deviceID string, componentID int) error

	// AppendReading appends one value to the component's log and
	// refreshes its denormalised latest-value fields.
	// Returns ErrComponentNotFound if the component does not exist.
	AppendReading(ctx context.Context, owner, deviceID string, componentID int, value float64, at time.Time) error

	// RecordHeartbeat updates the device's last-seen timestamp.
	// Returns ErrDeviceNotFound if the device does not exist.
	RecordHeartbeat(ctx context.Context, owner, deviceID string, at time.Time) error

	// AppendConnectEvent logs a connect of an already-provisioned device.
	// Returns ErrDeviceNotFound if the device does not exist.
	AppendConnectEvent(ctx context.Context, owner, deviceID string, at time.Time) error

	// HasDevice reports whether the owner has the device.
	HasDevice(ctx context.Context, owner, deviceID string) (bool, error)

	// ListDevices retrieves the owner's devices without their logs.
	// An unknown owner yields an empty list, not an error.
	ListDevices(ctx context.Context, owner string) ([]Device, error)

	// ComponentLog retrieves a component's readings within [from, to],
	// newest first, capped at limit.
	ComponentLog(ctx context.Context, owner, deviceID string, componentID int, from, to time.Time, limit int64) ([]Reading, error)

	// LatestReading retrieves a component's most recent reading.
	// Returns ErrComponentNotFound if the component does not exist, or
	// ErrNoReadings if it has never reported a value.
	LatestReading(ctx context.Context, owner, deviceID string, componentID int) (*Reading, error)
}

// MongoRepository implements Repository using MongoDB.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a MongoDB-backed repository on the given
// database.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{col: db.Collection(collectionName)}
}

// EnsureOwner creates the owner's record if it does not exist.
func (r *MongoRepository) EnsureOwner(ctx context.Context, owner string) error {
	filter := bson.M{"owner": owner}
	update := bson.M{"$setOnInsert": bson.M{
		"owner":      owner,
		"created_at": time.Now().UTC(),
		"devices":    bson.A{},
	}}

	_, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("ensuring owner record: %w", err)
	}
	return nil
}

// EnsureDevice creates the device under the owner if it does not exist.
// The guarded filter only matches when the device is absent, so a
// concurrent or repeated call can never append a duplicate.
func (r *MongoRepository) EnsureDevice(ctx context.Context, owner, deviceID string, at time.Time) error {
	filter := bson.M{
		"owner":      owner,
		"devices.id": bson.M{"$ne": deviceID},
	}
	update := bson.M{"$push": bson.M{"devices": Device{
		ID:          deviceID,
		ConnectedAt: at,
		ConnectLog:  []ConnectEvent{},
		Components:  []Component{},
	}}}

	if _, err := r.col.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("ensuring device record: %w", err)
	}
	return nil
}

// EnsureComponent creates the component under the device if it does not
// exist.
func (r *MongoRepository) EnsureComponent(ctx context.Context, owner, deviceID string, componentID int) error {
	// Matches only when the device exists and the component does not.
	filter := bson.M{
		"owner": owner,
		"devices": bson.M{"$elemMatch": bson.M{
			"id":            deviceID,
			"components.id": bson.M{"$ne": componentID},
		}},
	}
	update := bson.M{"$push": bson.M{"devices.$.components": Component{
		ID:  componentID,
		Log: []Reading{},
	}}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("ensuring component record: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the component already exists (fine) or the device is
		// missing (not fine). Disambiguate.
		exists, err := r.HasDevice(ctx, owner, deviceID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrDeviceNotFound
		}
	}
	return nil
}

// AppendReading appends one value to the component's log.
func (r *MongoRepository) AppendReading(ctx context.Context, owner, deviceID string, componentID int, value float64, at time.Time) error {
	filter := bson.M{"owner": owner}
	update := bson.M{
		"$push": bson.M{"devices.$[d].components.$[c].log": Reading{Value: value, At: at}},
		"$set": bson.M{
			"devices.$[d].components.$[c].last_value": value,
			"devices.$[d].components.$[c].last_at":    at,
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: []any{
		bson.M{"d.id": deviceID},
		bson.M{"c.id": componentID},
	}})

	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("appending reading: %w", err)
	}
	if res.ModifiedCount == 0 {
		return ErrComponentNotFound
	}
	return nil
}

// RecordHeartbeat updates the device's last-seen timestamp.
func (r *MongoRepository) RecordHeartbeat(ctx context.Context, owner, deviceID string, at time.Time) error {
	filter := bson.M{"owner": owner, "devices.id": deviceID}
	update := bson.M{"$set": bson.M{"devices.$.last_seen": at}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// AppendConnectEvent logs a reconnect of a known device.
func (r *MongoRepository) AppendConnectEvent(ctx context.Context, owner, deviceID string, at time.Time) error {
	filter := bson.M{"owner": owner, "devices.id": deviceID}
	update := bson.M{"$push": bson.M{"devices.$.connect_log": ConnectEvent{At: at}}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("appending connect event: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// HasDevice reports whether the owner has the device.
func (r *MongoRepository) HasDevice(ctx context.Context, owner, deviceID string) (bool, error) {
	filter := bson.M{"owner": owner, "devices.id": deviceID}

	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking device existence: %w", err)
	}
	return n > 0, nil
}

// ListDevices retrieves the owner's devices without their logs.
func (r *MongoRepository) ListDevices(ctx context.Context, owner string) ([]Device, error) {
	projection := bson.M{
		"devices.components.log": 0,
		"devices.connect_log":    0,
	}

	var rec OwnerRecord
	err := r.col.FindOne(ctx, bson.M{"owner": owner}, options.FindOne().SetProjection(projection)).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []Device{}, nil
		}
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return rec.Devices, nil
}

// ComponentLog retrieves a component's readings within [from, to],
// newest first. The pipeline unwinds server-side so only the matching
// window crosses the wire.
func (r *MongoRepository) ComponentLog(ctx context.Context, owner, deviceID string, componentID int, from, to time.Time, limit int64) ([]Reading, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner": owner}}},
		{{Key: "$unwind", Value: "$devices"}},
		{{Key: "$match", Value: bson.M{"devices.id": deviceID}}},
		{{Key: "$unwind", Value: "$devices.components"}},
		{{Key: "$match", Value: bson.M{"devices.components.id": componentID}}},
		{{Key: "$unwind", Value: "$devices.components.log"}},
		{{Key: "$match", Value: bson.M{"devices.components.log.at": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$sort", Value: bson.M{"devices.components.log.at": -1}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$devices.components.log"}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("querying component log: %w", err)
	}
	defer cursor.Close(ctx)

	readings := []Reading{}
	if err := cursor.All(ctx, &readings); err != nil {
		return nil, fmt.Errorf("decoding component log: %w", err)
	}
	return readings, nil
}

// LatestReading retrieves a component's most recent reading via a
// $slice of the log tail.
func (r *MongoRepository) LatestReading(ctx context.Context, owner, deviceID string, componentID int) (*Reading, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner": owner}}},
		{{Key: "$unwind", Value: "$devices"}},
		{{Key: "$match", Value: bson.M{"devices.id": deviceID}}},
		{{Key: "$unwind", Value: "$devices.components"}},
		{{Key: "$match", Value: bson.M{"devices.components.id": componentID}}},
		{{Key: "$project", Value: bson.M{
			"latest": bson.M{"$slice": bson.A{"$devices.components.log", -1}},
		}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Latest []Reading `bson:"latest"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding latest reading: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrComponentNotFound
	}
	if len(rows[0].Latest) == 0 {
		return nil, ErrNoReadings
	}
	return &rows[0].Latest[0], nil
}
