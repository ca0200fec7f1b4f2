package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SummaryFeature stores one generated summary for a record.
// Collection: summary_features
//
// Rows are append-only: reprocessing with a new model inserts a new row
// instead of overwriting, preserving lineage. The latest row by
// created_at is the active summary.
type SummaryFeature struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecordID  string             `bson:"record_id" json:"record_id"`
	Summary   string             `bson:"summary" json:"summary"`
	KeyPoints []string           `bson:"key_points" json:"key_points"`
	ModelName string             `bson:"model_name" json:"model_name"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// EmbeddingFeature stores one embedding vector for a record.
// Collection: embedding_features
//
// Same append-only versioning as SummaryFeature.
type EmbeddingFeature struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecordID  string             `bson:"record_id" json:"record_id"`
	Vector    []float32          `bson:"vector" json:"vector"`
	Dimension int                `bson:"dimension" json:"dimension"`
	ModelName string             `bson:"model_name" json:"model_name"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
