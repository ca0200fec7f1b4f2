package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-news-pipeline/models"
)

type SourceRepository struct {
	col *mongo.Collection
}

func NewSourceRepository(db *mongo.Database) *SourceRepository {
	return &SourceRepository{col: db.Collection("sources")}
}

// UpsertByEndpoint upserts a source uniquely identified by its endpoint.
// An existing source keeps its active flag.
func (r *SourceRepository) UpsertByEndpoint(ctx context.Context, s *models.Source) (*mongo.UpdateResult, error) {
	now := time.Now().UTC()

	filter := bson.M{"endpoint": s.Endpoint}
	update := bson.M{
		"$setOnInsert": bson.M{
			"created_at": now,
			"active":     true,
		},
		"$set": bson.M{
			"updated_at": now,
			"name":       s.Name,
			"type":       s.Type,
			"endpoint":   s.Endpoint,
		},
	}
	opts := options.Update().SetUpsert(true)
	return r.col.UpdateOne(ctx, filter, update, opts)
}

// GetByEndpoint returns a source by its endpoint.
func (r *SourceRepository) GetByEndpoint(ctx context.Context, endpoint string) (*models.Source, error) {
	var s models.Source
	if err := r.col.FindOne(ctx, bson.M{"endpoint": endpoint}).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns a source by ID.
func (r *SourceRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Source, error) {
	var s models.Source
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every source, active and inactive.
func (r *SourceRepository) List(ctx context.Context) ([]models.Source, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sources []models.Source
	if err := cur.All(ctx, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// ListActive returns only active sources.
func (r *SourceRepository) ListActive(ctx context.Context) ([]models.Source, error) {
	cur, err := r.col.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sources []models.Source
	if err := cur.All(ctx, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// Deactivate soft-deletes a source. Historical records keep referring to
// it; ingestion simply stops picking it up.
func (r *SourceRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"active": false, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
