package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record represents one ingested content item (article or video).
// Collection: records
//
// The ID is derived deterministically from the normalized external URL,
// so re-ingesting the same item can never create a duplicate. After
// creation a record is immutable except for the appended extraction
// fields (ExtractedText, ExtractionMethod, ContentHash, CanonicalID).
type Record struct {
	ID         string             `bson:"_id" json:"id"`
	SourceID   primitive.ObjectID `bson:"source_id" json:"source_id"`
	SourceName string             `bson:"source_name" json:"source_name"`
	Title      string             `bson:"title" json:"title"`

	// ExternalURL is the URL as reported by the source; NormalizedURL is
	// the canonical form the ID was derived from.
	ExternalURL   string `bson:"external_url" json:"external_url"`
	NormalizedURL string `bson:"normalized_url" json:"normalized_url"`

	// RawContent holds inline content (feed body, transcript). ContentRef
	// holds a URL to fetch when the source only ships a reference.
	RawContent string `bson:"raw_content,omitempty" json:"raw_content,omitempty"`
	ContentRef string `bson:"content_ref,omitempty" json:"content_ref,omitempty"`

	PublishedAt time.Time `bson:"published_at" json:"published_at"`
	IngestedAt  time.Time `bson:"ingested_at" json:"ingested_at"`

	// Appended by the extract stage.
	ExtractedText    string `bson:"extracted_text,omitempty" json:"extracted_text,omitempty"`
	ExtractionMethod string `bson:"extraction_method,omitempty" json:"extraction_method,omitempty"`
	ContentHash      string `bson:"content_hash,omitempty" json:"content_hash,omitempty"`

	// CanonicalID points at the record whose features this record shares
	// when the extract stage deduplicated it by content hash.
	CanonicalID string `bson:"canonical_id,omitempty" json:"canonical_id,omitempty"`
}
