package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-news-pipeline/pipeline"
)

// StateRepository is the Mongo-backed pipeline.StateStore. A conditional
// UpdateOne gives CompareAndSwap its atomicity: the state filter and the
// write happen as one document operation.
type StateRepository struct {
	col *mongo.Collection
}

func NewStateRepository(db *mongo.Database) *StateRepository {
	return &StateRepository{col: db.Collection("processing_states")}
}

var _ pipeline.StateStore = (*StateRepository)(nil)

func (r *StateRepository) Create(ctx context.Context, recordID string) error {
	st := pipeline.ProcessingState{
		RecordID:  recordID,
		State:     pipeline.StatePending,
		Retries:   map[pipeline.Stage]int{},
		UpdatedAt: time.Now().UTC(),
	}
	_, err := r.col.InsertOne(ctx, st)
	if mongo.IsDuplicateKeyError(err) {
		// Already registered: idempotent re-ingestion.
		return nil
	}
	return err
}

func (r *StateRepository) Get(ctx context.Context, recordID string) (*pipeline.ProcessingState, error) {
	var st pipeline.ProcessingState
	if err := r.col.FindOne(ctx, bson.M{"_id": recordID}).Decode(&st); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, pipeline.ErrStateNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (r *StateRepository) CompareAndSwap(ctx context.Context, recordID string, from, to pipeline.State) error {
	now := time.Now().UTC()
	set := bson.M{
		"state":      to,
		"updated_at": now,
	}
	update := bson.M{"$set": set}
	if to == pipeline.StateComplete {
		set["completed_at"] = now
	} else {
		update["$unset"] = bson.M{"completed_at": ""}
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": recordID, "state": from}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a lost race from a missing state.
		if err := r.col.FindOne(ctx, bson.M{"_id": recordID}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return pipeline.ErrStateNotFound
		}
		return pipeline.ErrStaleState
	}
	return nil
}

func (r *StateRepository) SetFailure(ctx context.Context, recordID string, from, to pipeline.State, stage pipeline.Stage, retries int, lastError string) error {
	set := bson.M{
		"state":      to,
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	}
	if stage != "" {
		set["retries."+string(stage)] = retries
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": recordID, "state": from}, bson.M{
		"$set":   set,
		"$unset": bson.M{"completed_at": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if err := r.col.FindOne(ctx, bson.M{"_id": recordID}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return pipeline.ErrStateNotFound
		}
		return pipeline.ErrStaleState
	}
	return nil
}

func (r *StateRepository) Reclaim(ctx context.Context, recordID string, inProgress pipeline.State, updatedBefore time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{
		"_id":        recordID,
		"state":      inProgress,
		"updated_at": bson.M{"$lte": updatedBefore},
	}, bson.M{
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if err := r.col.FindOne(ctx, bson.M{"_id": recordID}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return pipeline.ErrStateNotFound
		}
		return pipeline.ErrStaleState
	}
	return nil
}

func (r *StateRepository) Counts(ctx context.Context) (map[pipeline.State]int64, error) {
	cur, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$state", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	counts := make(map[pipeline.State]int64)
	for cur.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		counts[pipeline.State(row.ID)] = row.Count
	}
	return counts, cur.Err()
}

// CompletedSince returns the IDs of records completed strictly after
// since, newest first.
func (r *StateRepository) CompletedSince(ctx context.Context, since time.Time) ([]string, error) {
	filter := bson.M{
		"state":        pipeline.StateComplete,
		"completed_at": bson.M{"$gt": since},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completed_at", Value: -1}}).
		SetProjection(bson.M{"_id": 1})

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}
