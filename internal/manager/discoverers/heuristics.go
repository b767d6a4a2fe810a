package discoverers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"

	"github.com/PuerkitoBio/purell"
)

var defaultDocumentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.pdf($|[?#])`),
	regexp.MustCompile(`(?i)/entscheid`),
	regexp.MustCompile(`(?i)/urteil`),
	regexp.MustCompile(`(?i)/sentenz`),
	regexp.MustCompile(`(?i)/juris`),
	regexp.MustCompile(`(?i)/rechtsprech`),
}

// anchorHintRe matches link texts that announce a decision.
var anchorHintRe = regexp.MustCompile(`(?i)(entscheid|urteil|sentenza|jugement|d[ée]cision|arr[eê]t|rechtsprechung|jurisprudence|leitsatz)`)

// linkMatcher decides whether a URL points at a decision document.
type linkMatcher struct {
	patterns []*regexp.Regexp
	custom   bool
}

// newLinkMatcher uses the source's document patterns when it has any, the
// built-in path and anchor heuristics otherwise.
func newLinkMatcher(source *models.Source) (*linkMatcher, error) {
	if len(source.DocumentPatterns) == 0 {
		return &linkMatcher{patterns: defaultDocumentPatterns}, nil
	}
	m := &linkMatcher{custom: true}
	for _, p := range source.DocumentPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

func (m *linkMatcher) IsDocument(u *url.URL, anchorText string) bool {
	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	if m.custom {
		// custom patterns see the whole URL
		target = u.String()
	}
	for _, re := range m.patterns {
		if re.MatchString(target) {
			return true
		}
	}
	return !m.custom && anchorText != "" && anchorHintRe.MatchString(anchorText)
}

// looksLikeDownload catches servlet style document endpoints seen in sitemaps.
func looksLikeDownload(u *url.URL) bool {
	s := strings.ToLower(u.String())
	return strings.Contains(s, "servletdownload") ||
		(strings.Contains(s, "download") && strings.Contains(s, "pdf"))
}

// normalizeURL gives the visited-set key for a URL.
func normalizeURL(raw string) string {
	n, err := purell.NormalizeURLString(raw, purell.FlagsSafe|purell.FlagRemoveFragment)
	if err != nil {
		return raw
	}
	return n
}

func seedURLs(source *models.Source) []string {
	if len(source.StartURLs) > 0 {
		return source.StartURLs
	}
	if source.Homepage != "" {
		return []string{source.Homepage}
	}
	return nil
}
