package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ai-news-pipeline/models"
)

type SummaryRepository struct {
	col *mongo.Collection
}

func NewSummaryRepository(db *mongo.Database) *SummaryRepository {
	return &SummaryRepository{col: db.Collection("summary_features")}
}

// Insert appends a new summary row. Rows are never overwritten;
// reprocessing with a new model adds a version.
func (r *SummaryRepository) Insert(ctx context.Context, f *models.SummaryFeature) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, f)
	return err
}

// LatestByRecord returns the newest summary for the record.
func (r *SummaryRepository) LatestByRecord(ctx context.Context, recordID string) (*models.SummaryFeature, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var f models.SummaryFeature
	if err := r.col.FindOne(ctx, bson.M{"record_id": recordID}, opts).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}
