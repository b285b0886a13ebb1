package firealert

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
const collectionName = "fire_alerts"

// Repository defines the interface for fire alert persistence.
type Repository interface {
	// PersistAlert atomically ensures the owner and detector records and
	// appends the alarm: either every write lands or none does.
	PersistAlert(ctx context.Context, owner, detectorID string, alert Alert) error

	// RecordTestSignal updates the detector's last self-test timestamp,
	// creating owner and detector records if needed.
	RecordTestSignal(ctx context.Context, owner, detectorID string, at time.Time) error

	// HasDetector reports whether the owner has the detector.
	HasDetector(ctx context.Context, owner, detectorID string) (bool, error)

	// AlertLog retrieves a detector's alarms within [from, to], newest
	// first, capped at limit.
	AlertLog(ctx context.Context, owner, detectorID string, from, to time.Time, limit int64) ([]Alert, error)

	// LatestAlerts retrieves the owner's detectors with their
	// denormalised last-alarm fields, without alarm logs.
	LatestAlerts(ctx context.Context, owner string) ([]Detector, error)
}

// MongoRepository implements Repository using MongoDB. Alarm writes run
// inside a session transaction, which requires the server to be a
// replica set (single-node replica sets are fine).
type MongoRepository struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoRepository creates a MongoDB-backed repository. The client is
// needed alongside the database to start sessions.
func NewMongoRepository(client *mongo.Client, db *mongo.Database) *MongoRepository {
	return &MongoRepository{client: client, col: db.Collection(collectionName)}
}

// PersistAlert runs ensure-owner, ensure-detector and append-alert as
// one transaction.
func (r *MongoRepository) PersistAlert(ctx context.Context, owner, detectorID string, alert Alert) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if err := r.ensureDetector(sc, owner, detectorID); err != nil {
			return nil, err
		}

		filter := bson.M{"owner": owner, "detectors.id": detectorID}
		update := bson.M{
			"$push": bson.M{"detectors.$.alerts": alert},
			"$set": bson.M{
				"detectors.$.last_level": alert.Level,
				"detectors.$.last_temp":  alert.Temperature,
				"detectors.$.last_at":    alert.At,
			},
		}
		if _, err := r.col.UpdateOne(sc, filter, update); err != nil {
			return nil, fmt.Errorf("appending alert: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("persisting alert: %w", err)
	}
	return nil
}

// RecordTestSignal logs a self-test outside any transaction: a lost
// test timestamp is tolerable in a way a lost alarm is not.
func (r *MongoRepository) RecordTestSignal(ctx context.Context, owner, detectorID string, at time.Time) error {
	if err := r.ensureDetector(ctx, owner, detectorID); err != nil {
		return err
	}

	filter := bson.M{"owner": owner, "detectors.id": detectorID}
	update := bson.M{"$set": bson.M{"detectors.$.last_test": at}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("recording test signal: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDetectorNotFound
	}
	return nil
}

// ensureDetector creates the owner record and the detector record if
// either is missing. Idempotent.
func (r *MongoRepository) ensureDetector(ctx context.Context, owner, detectorID string) error {
	ownerFilter := bson.M{"owner": owner}
	ownerUpdate := bson.M{"$setOnInsert": bson.M{
		"owner":      owner,
		"created_at": time.Now().UTC(),
		"detectors":  bson.A{},
	}}
	if _, err := r.col.UpdateOne(ctx, ownerFilter, ownerUpdate, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("ensuring owner record: %w", err)
	}

	detFilter := bson.M{"owner": owner, "detectors.id": bson.M{"$ne": detectorID}}
	detUpdate := bson.M{"$push": bson.M{"detectors": Detector{ID: detectorID, Alerts: []Alert{}}}}
	if _, err := r.col.UpdateOne(ctx, detFilter, detUpdate); err != nil {
		return fmt.Errorf("ensuring detector record: %w", err)
	}
	return nil
}

// HasDetector reports whether the owner has the detector.
func (r *MongoRepository) HasDetector(ctx context.Context, owner, detectorID string) (bool, error) {
	filter := bson.M{"owner": owner, "detectors.id": detectorID}

	n, err := r.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking detector existence: %w", err)
	}
	return n > 0, nil
}

// AlertLog retrieves a detector's alarms within [from, to], newest first.
func (r *MongoRepository) AlertLog(ctx context.Context, owner, detectorID string, from, to time.Time, limit int64) ([]Alert, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner": owner}}},
		{{Key: "$unwind", Value: "$detectors"}},
		{{Key: "$match", Value: bson.M{"detectors.id": detectorID}}},
		{{Key: "$unwind", Value: "$detectors.alerts"}},
		{{Key: "$match", Value: bson.M{"detectors.alerts.at": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$sort", Value: bson.M{"detectors.alerts.at": -1}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$detectors.alerts"}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("querying alert log: %w", err)
	}
	defer cursor.Close(ctx)

	alerts := []Alert{}
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("decoding alert log: %w", err)
	}
	return alerts, nil
}

// LatestAlerts retrieves the owner's detectors without their logs.
func (r *MongoRepository) LatestAlerts(ctx context.Context, owner string) ([]Detector, error) {
	projection := bson.M{"detectors.alerts": 0}

	var rec OwnerRecord
	err := r.col.FindOne(ctx, bson.M{"owner": owner}, options.FindOne().SetProjection(projection)).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []Detector{}, nil
		}
		return nil, fmt.Errorf("querying latest alerts: %w", err)
	}
	return rec.Detectors, nil
}
