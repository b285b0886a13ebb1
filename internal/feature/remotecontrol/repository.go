package remotecontrol

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
const collectionName = "control_state"

// Repository defines the interface for acknowledged-state persistence.
type Repository interface {
	// RecordState upserts the last acknowledged state of a component,
	// creating owner, device and component records as needed.
	RecordState(ctx context.Context, owner, deviceID string, componentID int, state string, at time.Time) error

	// DeviceState retrieves a device's acknowledged component states.
	// An unknown device yields an empty list, not an error.
	DeviceState(ctx context.Context, owner, deviceID string) ([]ComponentState, error)
}

// MongoRepository implements Repository using MongoDB.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a MongoDB-backed repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{col: db.Collection(collectionName)}
}

// RecordState upserts one component's acknowledged state.
func (r *MongoRepository) RecordState(ctx context.Context, owner, deviceID string, componentID int, state string, at time.Time) error {
	ownerFilter := bson.M{"owner": owner}
	ownerUpdate := bson.M{"$setOnInsert": bson.M{
		"owner":      owner,
		"created_at": time.Now().UTC(),
		"devices":    bson.A{},
	}}
	if _, err := r.col.UpdateOne(ctx, ownerFilter, ownerUpdate, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("ensuring owner record: %w", err)
	}

	devFilter := bson.M{"owner": owner, "devices.id": bson.M{"$ne": deviceID}}
	devUpdate := bson.M{"$push": bson.M{"devices": DeviceState{ID: deviceID, Components: []ComponentState{}}}}
	if _, err := r.col.UpdateOne(ctx, devFilter, devUpdate); err != nil {
		return fmt.Errorf("ensuring device record: %w", err)
	}

	compFilter := bson.M{
		"owner": owner,
		"devices": bson.M{"$elemMatch": bson.M{
			"id":            deviceID,
			"components.id": bson.M{"$ne": componentID},
		}},
	}
	compUpdate := bson.M{"$push": bson.M{"devices.$.components": ComponentState{
		ID: componentID, State: state, UpdatedAt: at,
	}}}
	res, err := r.col.UpdateOne(ctx, compFilter, compUpdate)
	if err != nil {
		return fmt.Errorf("ensuring component record: %w", err)
	}
	if res.ModifiedCount > 0 {
		// Fresh component record already carries the state.
		return nil
	}

	setFilter := bson.M{"owner": owner}
	setUpdate := bson.M{"$set": bson.M{
		"devices.$[d].components.$[c].state":      state,
		"devices.$[d].components.$[c].updated_at": at,
	}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: []any{
		bson.M{"d.id": deviceID},
		bson.M{"c.id": componentID},
	}})
	if _, err := r.col.UpdateOne(ctx, setFilter, setUpdate, opts); err != nil {
		return fmt.Errorf("updating component state: %w", err)
	}
	return nil
}

// DeviceState retrieves a device's acknowledged component states.
func (r *MongoRepository) DeviceState(ctx context.Context, owner, deviceID string) ([]ComponentState, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner": owner}}},
		{{Key: "$unwind", Value: "$devices"}},
		{{Key: "$match", Value: bson.M{"devices.id": deviceID}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$devices"}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("querying device state: %w", err)
	}
	defer cursor.Close(ctx)

	var devices []DeviceState
	if err := cursor.All(ctx, &devices); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []ComponentState{}, nil
		}
		return nil, fmt.Errorf("decoding device state: %w", err)
	}
	if len(devices) == 0 {
		return []ComponentState{}, nil
	}
	return devices[0].Components, nil
}
