package discoverers

import (
	"errors"
	"fmt"
)

var (
	ErrNoStartURLs     = errors.New("source has no start urls")
	ErrNoSearchConfig  = errors.New("source has no search configuration")
	ErrInvalidPattern  = errors.New("invalid document pattern")
	ErrNoSitemap       = errors.New("no readable sitemap found")
	ErrInvalidSitemap  = errors.New("document is not a sitemap")
	ErrInvalidEndpoint = errors.New("invalid search endpoint")
)

// DiscoveryError wraps a failure that aborted enumeration of a source.
type DiscoveryError struct {
	SourceID string
	Strategy string
	Err      error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s discovery for %s: %v", e.Strategy, e.SourceID, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
