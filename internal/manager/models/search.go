package models

import "time"

// Sort orders for search.
const (
	SortRelevance = "relevance"
	SortDateDesc  = "date_desc"
	SortDateAsc   = "date_asc"
)

// SearchFilters are combined with AND. Empty fields do not filter.
type SearchFilters struct {
	SourceIDs []string   `json:"source_ids,omitempty"`
	Level     string     `json:"level,omitempty"`
	Canton    string     `json:"canton,omitempty"`
	Language  string     `json:"language,omitempty"`
	DateFrom  *time.Time `json:"date_from,omitempty"`
	DateTo    *time.Time `json:"date_to,omitempty"`
}

// SearchRequest is a retrieval query.
type SearchRequest struct {
	Query   string        `json:"query"`
	Filters SearchFilters `json:"filters"`
	Sort    string        `json:"sort"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// SearchHit is one decision in a result page.
type SearchHit struct {
	DecisionID   string     `json:"decision_id"`
	SourceID     string     `json:"source_id"`
	SourceName   string     `json:"source_name"`
	Level        string     `json:"level"`
	Canton       *string    `json:"canton,omitempty"`
	Court        *string    `json:"court,omitempty"`
	Docket       *string    `json:"docket,omitempty"`
	DecisionDate *time.Time `json:"decision_date,omitempty"`
	Title        *string    `json:"title,omitempty"`
	Language     *string    `json:"language,omitempty"`
	URL          string     `json:"url"`
	PDFURL       *string    `json:"pdf_url,omitempty"`
	Score        float64    `json:"score"`
	Snippet      string     `json:"snippet"`
	ChunkID      *string    `json:"chunk_id,omitempty"`
	ChunkText    string     `json:"-"`
}

// SearchResult is a page of hits. Total is omitted when counting was skipped.
type SearchResult struct {
	Hits  []*SearchHit `json:"hits"`
	Total *int         `json:"total,omitempty"`
}

// LexicalMatch is a decision ranked by the full-text index.
type LexicalMatch struct {
	DecisionID string
	Score      float64
}

// VectorMatch is the closest chunk of a decision to the query vector.
type VectorMatch struct {
	DecisionID string
	ChunkID    string
	ChunkText  string
	Similarity float64
}

// Citation links an answer marker to the hit it came from.
type Citation struct {
	Marker       string     `json:"marker"`
	DecisionID   string     `json:"decision_id"`
	ChunkID      *string    `json:"chunk_id,omitempty"`
	SourceName   string     `json:"source_name"`
	Docket       *string    `json:"docket,omitempty"`
	DecisionDate *time.Time `json:"decision_date,omitempty"`
	URL          string     `json:"url"`
	PDFURL       *string    `json:"pdf_url,omitempty"`
}

// Answer is a synthesized, cited response.
type Answer struct {
	Answer    string      `json:"answer"`
	Citations []*Citation `json:"citations"`
	HitsCount int         `json:"hits_count"`
}
