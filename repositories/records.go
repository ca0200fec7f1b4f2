package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-news-pipeline/models"
)

type RecordRepository struct {
	col *mongo.Collection
}

func NewRecordRepository(db *mongo.Database) *RecordRepository {
	return &RecordRepository{col: db.Collection("records")}
}

// InsertIfAbsent creates the record if its deterministic ID is not
// present yet. Returns true when a new record was inserted; re-ingesting
// the same item is a no-op.
func (r *RecordRepository) InsertIfAbsent(ctx context.Context, rec *models.Record) (bool, error) {
	if rec.IngestedAt.IsZero() {
		rec.IngestedAt = time.Now().UTC()
	}
	res, err := r.col.UpdateByID(ctx, rec.ID,
		bson.M{"$setOnInsert": rec},
		options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// Get returns a record by its deterministic ID.
func (r *RecordRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	var rec models.Record
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendExtraction writes the extract stage's derived fields. These are
// the only mutations a record sees after creation.
func (r *RecordRepository) AppendExtraction(ctx context.Context, id, text, method, contentHash string) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"extracted_text":    text,
			"extraction_method": method,
			"content_hash":      contentHash,
		},
	})
	return err
}

// LinkCanonical marks a record as a duplicate of canonicalID, sharing
// that record's features.
func (r *RecordRepository) LinkCanonical(ctx context.Context, id, canonicalID string) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"canonical_id": canonicalID},
	})
	return err
}

// FindByContentHash returns the oldest record with the given content
// hash, excluding excludeID, or nil when none exists. Used by the
// extract-stage dedup gate.
func (r *RecordRepository) FindByContentHash(ctx context.Context, contentHash, excludeID string) (*models.Record, error) {
	filter := bson.M{
		"content_hash": contentHash,
		"_id":          bson.M{"$ne": excludeID},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "ingested_at", Value: 1}})

	var rec models.Record
	if err := r.col.FindOne(ctx, filter, opts).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListByIDs returns the records for the given IDs, ordered by published
// timestamp descending.
func (r *RecordRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := r.col.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "published_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
