package discoverers

import (
	"fmt"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
)

// Defaults returns one instance of every built-in strategy.
func Defaults(locator SitemapLocator) []interfaces.Discoverer {
	return []interfaces.Discoverer{
		NewCrawler(),
		NewSitemapHarvester(locator),
		NewSearchWalker(),
	}
}

// ValidateSource checks the strategy-specific parts of a source definition.
func ValidateSource(source *models.Source) error {
	if _, err := newLinkMatcher(source); err != nil {
		return fmt.Errorf("source %s: %w", source.ID, err)
	}
	switch source.Strategy {
	case StrategySearch:
		if source.Search == nil || source.Search.Endpoint == "" {
			return fmt.Errorf("source %s: %w", source.ID, ErrNoSearchConfig)
		}
	default:
		if len(seedURLs(source)) == 0 {
			return fmt.Errorf("source %s: %w", source.ID, ErrNoStartURLs)
		}
	}
	return nil
}
