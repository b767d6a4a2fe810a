package chunkers

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/code-sleuth/caselaw-go/internal/manager/fingerprint"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

var (
	ErrContentEmpty    = errors.New("content cannot be empty")
	ErrInvalidMaxChars = errors.New("maxChars must be positive")
	ErrInvalidOverlap  = errors.New("overlapChars must be between 0 and maxChars")
)

const (
	maxCharsDefault     = 1800
	overlapCharsDefault = 250
	paragraphSeparator  = "\n\n"
	separatorLen        = 2
)

// Passage is one chunk of text. Overlap is the number of leading characters
// carried over from the previous passage, not counting the separator.
type Passage struct {
	Text    string
	Overlap int
}

// ParagraphChunker packs paragraphs into passages of bounded length, seeding
// each passage with the tail of the previous one.
type ParagraphChunker struct {
	maxChars      int
	overlapChars  int
	encoding      tokenizer.Codec
	tokenizerName string
	logger        zerolog.Logger
}

var _ interfaces.Chunker = (*ParagraphChunker)(nil)

// NewParagraphChunker creates a chunker with explicit bounds.
func NewParagraphChunker(maxChars, overlapChars int) (*ParagraphChunker, error) {
	logger := util.NewLogger(util.LevelFromEnv())

	if maxChars <= 0 {
		logger.Warn().Int("max_chars", maxChars).Msg("maxChars must be positive")
		return nil, ErrInvalidMaxChars
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		logger.Warn().Int("overlap_chars", overlapChars).Msg("overlapChars must be between 0 and maxChars")
		return nil, ErrInvalidOverlap
	}

	tokenizerName := getTokenizerFromEnv()
	encoding, err := getTokenizerEncoding(tokenizerName)
	if err != nil {
		logger.Error().Err(err).Str("tokenizer", tokenizerName).Msg("failed to get tokenizer")
		return nil, err
	}

	return &ParagraphChunker{
		maxChars:      maxChars,
		overlapChars:  overlapChars,
		encoding:      encoding,
		tokenizerName: tokenizerName,
		logger:        logger,
	}, nil
}

// NewDefaultParagraphChunker reads CHUNK_MAX_CHARS and CHUNK_OVERLAP_CHARS.
func NewDefaultParagraphChunker() (*ParagraphChunker, error) {
	return NewParagraphChunker(
		getIntFromEnv("CHUNK_MAX_CHARS", maxCharsDefault),
		getIntFromEnv("CHUNK_OVERLAP_CHARS", overlapCharsDefault),
	)
}

// GetChunkingStrategy returns the strategy name used by this chunker.
func (c *ParagraphChunker) GetChunkingStrategy() string {
	return "paragraph"
}

// ChunkDocument splits text into chunks with deterministic ids.
func (c *ParagraphChunker) ChunkDocument(decisionID, text string) ([]*models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		c.logger.Warn().Str("decision_id", decisionID).Msg("content is empty")
		return nil, ErrContentEmpty
	}

	passages := SplitPassages(text, c.maxChars, c.overlapChars)
	chunks := make([]*models.Chunk, 0, len(passages))
	for i, p := range passages {
		chunk := &models.Chunk{
			ID:           fingerprint.ChunkID(decisionID, i),
			DecisionID:   decisionID,
			Index:        i,
			Text:         p.Text,
			OverlapChars: p.Overlap,
		}
		if tokens, _, err := c.encoding.Encode(p.Text); err == nil {
			chunk.TokenCount = util.IntPtr(len(tokens))
		} else {
			c.logger.Warn().Err(err).Str("decision_id", decisionID).Msg("failed to count tokens")
		}
		chunks = append(chunks, chunk)
	}

	c.logger.Debug().Str("decision_id", decisionID).Int("chunks", len(chunks)).Msg("Chunked decision")
	return chunks, nil
}

// CountTokens returns the number of tokens in the given text.
func (c *ParagraphChunker) CountTokens(text string) (int, error) {
	tokens, _, err := c.encoding.Encode(text)
	if err != nil {
		c.logger.Err(err).Msg("failed to tokenize text")
		return 0, err
	}
	return len(tokens), nil
}

// SplitPassages packs the blank-line separated paragraphs of text into
// passages of at most maxChars characters. A passage is emitted when the next
// paragraph would overflow it; the following passage then starts with the
// last overlapChars characters of the emitted one. A paragraph longer than
// maxChars is kept whole in its own passage.
func SplitPassages(text string, maxChars, overlapChars int) []Passage {
	var paragraphs []string
	for _, p := range strings.Split(text, paragraphSeparator) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var (
		passages []Passage
		seed     string
		buf      []string
		bufLen   int
	)

	seedLen := func() int {
		if seed == "" {
			return 0
		}
		return utf8.RuneCountInString(seed) + separatorLen
	}

	emit := func() {
		body := strings.Join(buf, paragraphSeparator)
		passage := Passage{Text: body}
		if seed != "" {
			passage.Text = seed + paragraphSeparator + body
			passage.Overlap = utf8.RuneCountInString(seed)
		}
		passages = append(passages, passage)

		seed = lastRunes(passage.Text, overlapChars)
		buf = nil
		bufLen = 0
	}

	for _, p := range paragraphs {
		pLen := utf8.RuneCountInString(p)

		if len(buf) > 0 && seedLen()+bufLen+separatorLen+pLen > maxChars {
			emit()
		}

		if len(buf) == 0 {
			// Shrink the carried tail so the passage still fits, unless the
			// paragraph overflows on its own anyway.
			if pLen <= maxChars && seed != "" {
				room := maxChars - pLen - separatorLen
				switch {
				case room <= 0:
					seed = ""
				case room < utf8.RuneCountInString(seed):
					seed = lastRunes(seed, room)
				}
			}
			buf = append(buf, p)
			bufLen = pLen
			continue
		}

		buf = append(buf, p)
		bufLen += separatorLen + pLen
	}

	if len(buf) > 0 {
		emit()
	}

	return passages
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-n:])
}

// getTokenizerFromEnv returns the tokenizer name from environment or default.
func getTokenizerFromEnv() string {
	tokenizerName := os.Getenv("CHUNKER_TOKENIZER")
	if tokenizerName == "" {
		return "cl100k_base"
	}
	return tokenizerName
}

// getTokenizerEncoding returns the tokenizer encoding for the given name.
func getTokenizerEncoding(name string) (tokenizer.Codec, error) {
	switch strings.ToLower(name) {
	case "o200k_base":
		return tokenizer.Get(tokenizer.O200kBase)
	case "p50k_base":
		return tokenizer.Get(tokenizer.P50kBase)
	case "r50k_base":
		return tokenizer.Get(tokenizer.R50kBase)
	default:
		return tokenizer.Get(tokenizer.Cl100kBase)
	}
}

// getIntFromEnv returns an integer from environment variable or default value.
func getIntFromEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}
