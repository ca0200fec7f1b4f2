package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-news-pipeline/models"
)

type EmbeddingRepository struct {
	col *mongo.Collection
}

func NewEmbeddingRepository(db *mongo.Database) *EmbeddingRepository {
	return &EmbeddingRepository{col: db.Collection("embedding_features")}
}

// Insert appends a new embedding row, same versioning as summaries.
func (r *EmbeddingRepository) Insert(ctx context.Context, f *models.EmbeddingFeature) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.Dimension == 0 {
		f.Dimension = len(f.Vector)
	}
	_, err := r.col.InsertOne(ctx, f)
	return err
}

// LatestByRecord returns the newest embedding for the record.
func (r *EmbeddingRepository) LatestByRecord(ctx context.Context, recordID string) (*models.EmbeddingFeature, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var f models.EmbeddingFeature
	if err := r.col.FindOne(ctx, bson.M{"record_id": recordID}, opts).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}
