package dto

import (
	"time"

	"ai-news-pipeline/featurestore"
	"ai-news-pipeline/models"
	"ai-news-pipeline/pipeline"
)

// RecordDTO is the API shape of a completed record with its features.
// The embedding vector itself is omitted; consumers that need it read
// the feature store directly.
type RecordDTO struct {
	ID          string    `json:"id"`
	SourceName  string    `json:"source_name"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	CanonicalID string    `json:"canonical_id,omitempty"`

	Summary      string   `json:"summary,omitempty"`
	KeyPoints    []string `json:"key_points,omitempty"`
	SummaryModel string   `json:"summary_model,omitempty"`

	EmbeddingModel string `json:"embedding_model,omitempty"`
	EmbeddingDim   int    `json:"embedding_dim,omitempty"`
}

func FromCompletedRecord(cr *featurestore.CompletedRecord) RecordDTO {
	out := RecordDTO{
		ID:          cr.Record.ID,
		SourceName:  cr.Record.SourceName,
		Title:       cr.Record.Title,
		URL:         cr.Record.ExternalURL,
		PublishedAt: cr.Record.PublishedAt,
		CanonicalID: cr.Record.CanonicalID,
	}
	if cr.Summary != nil {
		out.Summary = cr.Summary.Summary
		out.KeyPoints = cr.Summary.KeyPoints
		out.SummaryModel = cr.Summary.ModelName
	}
	if cr.Embedding != nil {
		out.EmbeddingModel = cr.Embedding.ModelName
		out.EmbeddingDim = cr.Embedding.Dimension
	}
	return out
}

// SourceDTO is the API shape of a registered source.
type SourceDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Endpoint  string    `json:"endpoint"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func FromSource(s models.Source) SourceDTO {
	return SourceDTO{
		ID:        s.ID.Hex(),
		Name:      s.Name,
		Type:      string(s.Type),
		Endpoint:  s.Endpoint,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}

// RecordStateDTO is the API shape of one record's processing state.
type RecordStateDTO struct {
	RecordID  string                 `json:"record_id"`
	State     pipeline.State         `json:"state"`
	Retries   map[pipeline.Stage]int `json:"retries,omitempty"`
	LastError string                 `json:"last_error,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func FromProcessingState(st *pipeline.ProcessingState) RecordStateDTO {
	return RecordStateDTO{
		RecordID:  st.RecordID,
		State:     st.State,
		Retries:   st.Retries,
		LastError: st.LastError,
		UpdatedAt: st.UpdatedAt,
	}
}
