package extractors

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// Docket formats seen on Swiss court sites, most specific first.
var docketPatterns = []*regexp.Regexp{
	// Federal Supreme Court: 4A_500/2021
	regexp.MustCompile(`\b\d+[A-Z]_[0-9]{1,4}/[0-9]{4}\b`),
	// Federal Administrative Court: A-1234/2020
	regexp.MustCompile(`\b[A-F]-\d{1,5}/\d{4}\b`),
	// Cantonal: OG.2020.123-XY, PS.2019.5
	regexp.MustCompile(`\b[A-Z]{1,3}\.?\d{4}\.\d{1,4}(?:-[A-Z]{1,4}\d?)?\b`),
	// Zurich: LB220031
	regexp.MustCompile(`\b[A-Z]{2}\d{5,6}\b`),
	regexp.MustCompile(`\b[A-Z]{1,3}\d{2}\d{4}\b`),
}

// Leading BGE reference: BGE 147 III 73
var bgeRe = regexp.MustCompile(`\bBGE \d{2,3} [IVX]+ \d{1,4}\b`)

var monthNames = map[string]time.Month{
	"januar": time.January, "jänner": time.January, "februar": time.February, "märz": time.March,
	"april": time.April, "mai": time.May, "juni": time.June, "juli": time.July,
	"august": time.August, "september": time.September, "oktober": time.October,
	"november": time.November, "dezember": time.December,
	"janvier": time.January, "février": time.February, "mars": time.March, "avril": time.April,
	"juin": time.June, "juillet": time.July, "août": time.August, "septembre": time.September,
	"octobre": time.October, "décembre": time.December,
	"gennaio": time.January, "febbraio": time.February, "marzo": time.March, "aprile": time.April,
	"maggio": time.May, "giugno": time.June, "luglio": time.July, "agosto": time.August,
	"settembre": time.September, "ottobre": time.October, "dicembre": time.December,
}

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	wordDateRe    = regexp.MustCompile(`(?i)\b(\d{1,2})\.?\s+(januar|jänner|februar|märz|april|mai|juni|juli|august|september|oktober|november|dezember|janvier|février|mars|avril|juin|juillet|août|septembre|octobre|décembre|gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|dicembre)\s+(\d{4})\b`)
)

// Only the opening of a decision is searched for its date.
const dateSearchChars = 1500

// ExtractDocket returns the first docket number found in text.
func ExtractDocket(text string) string {
	for _, re := range docketPatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	if m := bgeRe.FindString(text); m != "" {
		return m
	}
	return ""
}

// LooksLikeDocket reports whether query is itself a docket number.
func LooksLikeDocket(query string) bool {
	query = strings.TrimSpace(query)
	for _, re := range docketPatterns[:2] {
		if loc := re.FindStringIndex(query); loc != nil && loc[0] == 0 && loc[1] == len(query) {
			return true
		}
	}
	return bgeRe.MatchString(query) && len(bgeRe.FindString(query)) == len(query)
}

// ExtractDate returns the first plausible calendar date in the opening of text.
func ExtractDate(text string) *time.Time {
	head := text
	if utf8.RuneCountInString(head) > dateSearchChars {
		head = string([]rune(head)[:dateSearchChars])
	}

	type found struct {
		pos int
		t   time.Time
	}
	var best *found
	consider := func(pos, year int, month time.Month, day int) {
		if year < 1848 || year > time.Now().Year()+1 || month < 1 || month > 12 || day < 1 || day > 31 {
			return
		}
		t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day {
			return
		}
		if best == nil || pos < best.pos {
			best = &found{pos: pos, t: t}
		}
	}

	for _, m := range numericDateRe.FindAllStringSubmatchIndex(head, -1) {
		day, _ := strconv.Atoi(head[m[2]:m[3]])
		month, _ := strconv.Atoi(head[m[4]:m[5]])
		year, _ := strconv.Atoi(head[m[6]:m[7]])
		consider(m[0], year, time.Month(month), day)
	}
	for _, m := range isoDateRe.FindAllStringSubmatchIndex(head, -1) {
		year, _ := strconv.Atoi(head[m[2]:m[3]])
		month, _ := strconv.Atoi(head[m[4]:m[5]])
		day, _ := strconv.Atoi(head[m[6]:m[7]])
		consider(m[0], year, time.Month(month), day)
	}
	for _, m := range wordDateRe.FindAllStringSubmatchIndex(head, -1) {
		day, _ := strconv.Atoi(head[m[2]:m[3]])
		month := monthNames[strings.ToLower(head[m[4]:m[5]])]
		year, _ := strconv.Atoi(head[m[6]:m[7]])
		consider(m[0], year, month, day)
	}

	if best == nil {
		return nil
	}
	return &best.t
}

// DetectLanguage returns an ISO 639-1 code for the national languages and
// English, or "" when detection is unreliable.
func DetectLanguage(text string) string {
	sample := text
	if utf8.RuneCountInString(sample) > 4000 {
		sample = string([]rune(sample)[:4000])
	}
	info := whatlanggo.DetectWithOptions(sample, whatlanggo.Options{
		Whitelist: map[whatlanggo.Lang]bool{
			whatlanggo.Deu: true,
			whatlanggo.Fra: true,
			whatlanggo.Ita: true,
			whatlanggo.Eng: true,
		},
	})
	if info.Confidence < 0.05 {
		return ""
	}
	return info.Lang.Iso6391()
}
