package models

import (
	"time"
)

// Court levels.
const (
	LevelFederal  = "federal"
	LevelCantonal = "cantonal"
)

// Source is a configured court publication site. AllowedHosts extends the
// crawl beyond the seed hosts, e.g. to a separate document server.
type Source struct {
	ID               string        `json:"id" yaml:"id"`
	Name             string        `json:"name" yaml:"name"`
	Level            string        `json:"level" yaml:"level"`
	Canton           *string       `json:"canton,omitempty" yaml:"canton"`
	Court            *string       `json:"court,omitempty" yaml:"court"`
	Homepage         string        `json:"homepage" yaml:"homepage"`
	StartURLs        []string      `json:"start_urls" yaml:"start_urls"`
	Strategy         string        `json:"connector" yaml:"connector"`
	Languages        []string      `json:"languages,omitempty" yaml:"languages"`
	Notes            string        `json:"notes,omitempty" yaml:"notes"`
	DocumentPatterns []string      `json:"document_patterns,omitempty" yaml:"document_patterns"`
	AllowedHosts     []string      `json:"allowed_hosts,omitempty" yaml:"allowed_hosts"`
	Search           *SearchConfig `json:"search,omitempty" yaml:"search"`
}

// SearchConfig describes a paginated query endpoint.
type SearchConfig struct {
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Params      map[string]string `json:"params,omitempty" yaml:"params"`
	PageParam   string            `json:"page_param" yaml:"page_param"`
	FirstPage   int               `json:"first_page" yaml:"first_page"`
	SinceParam  string            `json:"since_param,omitempty" yaml:"since_param"`
	UntilParam  string            `json:"until_param,omitempty" yaml:"until_param"`
	DateLayout  string            `json:"date_layout,omitempty" yaml:"date_layout"`
	LinkPattern string            `json:"link_pattern,omitempty" yaml:"link_pattern"`
	EndMarker   string            `json:"end_marker,omitempty" yaml:"end_marker"`
	DocketParam string            `json:"docket_param,omitempty" yaml:"docket_param"`
}

// Decision is one persisted court decision.
type Decision struct {
	ID            string         `json:"id"`
	SourceID      string         `json:"source_id"`
	SourceName    string         `json:"source_name"`
	Level         string         `json:"level"`
	Canton        *string        `json:"canton,omitempty"`
	Court         *string        `json:"court,omitempty"`
	Chamber       *string        `json:"chamber,omitempty"`
	Docket        *string        `json:"docket,omitempty"`
	DecisionDate  *time.Time     `json:"decision_date,omitempty"`
	PublishedDate *time.Time     `json:"published_date,omitempty"`
	Title         *string        `json:"title,omitempty"`
	Language      *string        `json:"language,omitempty"`
	URL           string         `json:"url"`
	PDFURL        *string        `json:"pdf_url,omitempty"`
	ContentText   string         `json:"content_text"`
	ContentHash   string         `json:"content_hash"`
	Meta          map[string]any `json:"meta"`
	IndexedAt     time.Time      `json:"indexed_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
}

// Chunk is a retrieval passage of a decision.
type Chunk struct {
	ID             string    `json:"id"`
	DecisionID     string    `json:"decision_id"`
	Index          int       `json:"chunk_index"`
	Text           string    `json:"text"`
	OverlapChars   int       `json:"overlap_chars"`
	TokenCount     *int      `json:"token_count,omitempty"`
	Embedding      []float32 `json:"-"`
	EmbeddingModel *string   `json:"embedding_model,omitempty"`
	// ContentHash is the hash of the decision text the chunk was cut from.
	ContentHash string `json:"-"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestionRun records one execution of a discovery strategy over a source.
type IngestionRun struct {
	ID                string         `json:"id"`
	ScraperName       string         `json:"scraper_name"`
	SourceID          *string        `json:"source_id,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds   *float64       `json:"duration_seconds,omitempty"`
	Status            string         `json:"status"`
	DecisionsFound    int            `json:"decisions_found"`
	DecisionsImported int            `json:"decisions_imported"`
	DecisionsSkipped  int            `json:"decisions_skipped"`
	DecisionsUpdated  int            `json:"decisions_updated"`
	Errors            int            `json:"errors"`
	FromDate          *time.Time     `json:"from_date,omitempty"`
	ToDate            *time.Time     `json:"to_date,omitempty"`
	Details           map[string]any `json:"details"`
	ErrorMessage      *string        `json:"error_message,omitempty"`
}

// Candidate is a URL a discovery strategy believes holds a decision, plus
// whatever metadata the listing exposed.
type Candidate struct {
	URL           string
	Referrer      string
	Depth         int
	Docket        string
	Title         string
	DecisionDate  *time.Time
	PublishedDate *time.Time
	Meta          map[string]any
	// Response is set when the strategy already fetched the document.
	Response *FetchResult
}

// FetchResult is a successful HTTP response body.
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
	FetchedAt   time.Time
}

// Extracted is the text and title recovered from a document.
type Extracted struct {
	Title  string
	Text   string
	Method string
}

// Dedup outcomes.
const (
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
	OutcomeUpdated  = "updated"
)
