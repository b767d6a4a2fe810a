package extractors

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// Elements that never carry decision text.
const boilerplateSelector = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, form, button, menu"

// Landmarks checked before falling back to paragraph density.
var mainSelectors = []string{
	"article",
	"main",
	"[role=main]",
	"#content",
	"#main-content",
	"#maincontent",
	".content",
	".main-content",
	"#main",
}

const minLandmarkChars = 200

var (
	mdImageRe    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmphasisRe = regexp.MustCompile(`\*\*|__`)
	mdHeadingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEscapeRe   = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+\\-.!|>~])")
	mdRuleRe     = regexp.MustCompile(`(?m)^\s*(\* \* \*|---+|\*\*\*+)\s*$`)
)

// htmlExtractor pulls the main content of a page as paragraph-separated text.
type htmlExtractor struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

func newHTMLExtractor() *htmlExtractor {
	return &htmlExtractor{
		policy:    bluemonday.UGCPolicy(),
		converter: md.NewConverter("", true, nil),
	}
}

// extract returns the title and text. method names the path that produced the text.
func (h *htmlExtractor) extract(body []byte, contentType string) (title, text, method string) {
	body = toUTF8(body, contentType)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", NormalizeText(visibleText(body)), methodHTMLVisible
	}

	title = pageTitle(doc)

	doc.Find(boilerplateSelector).Remove()
	main := selectMainContent(doc)
	if main != nil {
		if fragment, err := goquery.OuterHtml(main); err == nil {
			text = h.renderFragment(fragment)
		}
	}
	if text != "" {
		return title, text, methodHTMLMain
	}

	return title, NormalizeText(visibleText(body)), methodHTMLVisible
}

// renderFragment sanitises fragment and renders it as plain text with blank
// lines between blocks.
func (h *htmlExtractor) renderFragment(fragment string) string {
	safe := h.policy.Sanitize(fragment)
	markdown, err := h.converter.ConvertString(safe)
	if err != nil {
		return ""
	}
	return NormalizeText(markdownToPlain(markdown))
}

func markdownToPlain(markdown string) string {
	out := mdImageRe.ReplaceAllString(markdown, "")
	out = mdLinkRe.ReplaceAllString(out, "$1")
	out = mdRuleRe.ReplaceAllString(out, "")
	out = mdEmphasisRe.ReplaceAllString(out, "")
	out = mdHeadingRe.ReplaceAllString(out, "")
	return mdEscapeRe.ReplaceAllString(out, "$1")
}

func pageTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return strings.Join(strings.Fields(title), " ")
}

// selectMainContent prefers a landmark element with enough text, then the
// element holding the most paragraph text outside of links.
func selectMainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(sel.Text())) >= minLandmarkChars {
			return sel
		}
	}

	scores := make(map[*html.Node]int)
	parents := make(map[*html.Node]*goquery.Selection)
	doc.Find("p, pre, blockquote, li, td").Each(func(_ int, s *goquery.Selection) {
		textLen := utf8.RuneCountInString(strings.TrimSpace(s.Text()))
		linkLen := utf8.RuneCountInString(strings.TrimSpace(s.Find("a").Text()))
		score := textLen - linkLen
		if score <= 0 {
			return
		}
		parent := s.Parent()
		if parent.Length() == 0 {
			return
		}
		node := parent.Get(0)
		scores[node] += score
		parents[node] = parent
	})

	var (
		best      *goquery.Selection
		bestScore int
	)
	for node, score := range scores {
		if score > bestScore {
			best, bestScore = parents[node], score
		}
	}
	if best != nil {
		return best
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	return body
}

// toUTF8 decodes body from the charset named by contentType, a BOM or a meta
// declaration. Valid UTF-8 is returned as is; undeclared bytes are read as
// Windows-1252.
func toUTF8(body []byte, contentType string) []byte {
	if utf8.Valid(body) {
		return body
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}

// visibleText renders every text node outside non-content elements, breaking
// lines at block boundaries.
func visibleText(body []byte) string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head, atom.Svg, atom.Iframe:
				return
			case atom.Br:
				sb.WriteString("\n")
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			sb.WriteString("\n\n")
		}
	}
	walk(root)

	return sb.String()
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.H1, atom.H2, atom.H3,
		atom.H4, atom.H5, atom.H6, atom.Li, atom.Ul, atom.Ol, atom.Table, atom.Tr, atom.Blockquote,
		atom.Pre, atom.Dl, atom.Dt, atom.Dd, atom.Header, atom.Footer, atom.Nav, atom.Aside, atom.Body:
		return true
	}
	return false
}
