package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/code-sleuth/caselaw-go/internal/manager/chunkers"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/internal/manager/repository"
	"github.com/code-sleuth/caselaw-go/internal/manager/testutil"
)

// fakeEmbedder derives a 3-dimensional vector from keyword counts so
// similarity is predictable. overrides pins vectors for exact inputs.
type fakeEmbedder struct {
	overrides map[string][]float32
	err       error
	dimension int
	calls     atomic.Int64
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, contents []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(contents))
	for i, c := range contents {
		if v, ok := f.overrides[c]; ok {
			out[i] = v
			continue
		}
		lower := strings.ToLower(c)
		out[i] = []float32{
			float32(strings.Count(lower, "steuer")),
			float32(strings.Count(lower, "arbeit")),
			1,
		}
		if f.dimension > 0 && f.dimension != 3 {
			out[i] = make([]float32, f.dimension)
		}
	}
	return out, nil
}

func (f *fakeEmbedder) GetModelName() string {
	return "fake-embed"
}

func (f *fakeEmbedder) GetDimension() int {
	return testutil.TestEmbeddingDim
}

func (f *fakeEmbedder) GetMaxTokens() int {
	return 8192
}

type fakeLLM struct {
	response string
	err      error
	mu       sync.Mutex
	system   string
	user     string
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system, f.user = system, user
	return f.response, f.err
}

func (f *fakeLLM) GetModelName() string {
	return "fake-llm"
}

// stubDiscoverer emits a fixed candidate list.
type stubDiscoverer struct {
	name       string
	candidates []*models.Candidate
	err        error
}

func (s *stubDiscoverer) Discover(
	ctx context.Context,
	fetcher interfaces.Fetcher,
	source *models.Source,
	args *models.IngestArgs,
	emit interfaces.EmitFunc,
) error {
	for _, c := range s.candidates {
		if err := emit(c); err != nil {
			return err
		}
	}
	return s.err
}

func (s *stubDiscoverer) GetStrategyName() string {
	return s.name
}

func newTestStore(t *testing.T) interfaces.Store {
	t.Helper()
	store, err := repository.New(testutil.SetupSQLiteDB(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return store
}

func newTestIndexer(t *testing.T, store interfaces.Store, embedder interfaces.Embedder) *Indexer {
	t.Helper()
	chunker, err := chunkers.NewParagraphChunker(400, 50)
	if err != nil {
		t.Fatalf("Failed to create chunker: %v", err)
	}
	return NewIndexer(chunker, embedder, store)
}

// decisionHTML renders a court page whose body repeats paragraph until it
// holds at least minChars characters.
func decisionHTML(title, paragraph string, minChars int) string {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title></head><body><nav><a href=\"/\">Start</a></nav><main>")
	b.WriteString("<h1>" + title + "</h1>")
	written := 0
	for written < minChars {
		b.WriteString("<p>" + paragraph + "</p>")
		written += len(paragraph)
	}
	b.WriteString("</main><footer>Impressum</footer></body></html>")
	return b.String()
}
