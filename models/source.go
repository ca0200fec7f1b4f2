package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SourceType enumerates the kinds of content sources.
type SourceType string

const (
	SourceTypeFeed    SourceType = "feed"
	SourceTypeChannel SourceType = "channel"
	SourceTypePage    SourceType = "page"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeFeed, SourceTypeChannel, SourceTypePage:
		return true
	}
	return false
}

// Source represents a registered content source.
// Collection: sources
//
// Sources are never deleted; deactivation flips Active so historical
// records keep a valid source reference.
type Source struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
	Name      string             `bson:"name" json:"name"`
	Type      SourceType         `bson:"type" json:"type"`
	Endpoint  string             `bson:"endpoint" json:"endpoint"`
	Active    bool               `bson:"active" json:"active"`
}
