package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/chunkers"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/internal/manager/repository"
	"github.com/code-sleuth/caselaw-go/internal/manager/services"
	"github.com/code-sleuth/caselaw-go/internal/manager/testutil"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "caselaw-test", Version: "0.1.0"}

type cannedLLM struct{ text string }

func (c cannedLLM) Generate(context.Context, string, string) (string, error) { return c.text, nil }
func (c cannedLLM) GetModelName() string                                     { return "canned" }

func newSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	store, err := repository.New(testutil.SetupSQLiteDB(t))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	decided := time.Date(2023, 11, 2, 0, 0, 0, 0, time.UTC)
	decision := &models.Decision{
		ID:           "dec-zh",
		SourceID:     "zh_obergericht",
		SourceName:   "Obergericht Zürich",
		Level:        models.LevelCantonal,
		Canton:       util.StringPtr("ZH"),
		Docket:       util.StringPtr("LB230012"),
		DecisionDate: &decided,
		URL:          "https://court.example/zh/LB230012.pdf",
		ContentText:  "Die Berufung betreffend Werklohnforderung wird teilweise gutgeheissen.",
		ContentHash:  "hash-zh",
		IndexedAt:    time.Now().UTC(),
	}
	if err := store.InsertDecision(ctx, decision); err != nil {
		t.Fatalf("Failed to insert decision: %v", err)
	}
	chunker, err := chunkers.NewParagraphChunker(400, 50)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := services.NewIndexer(chunker, nil, store).Index(ctx, decision.ID, decision.ContentText); err != nil {
		t.Fatal(err)
	}

	search := services.NewSearchService(store, nil, nil)
	answer, err := services.NewAnswerService(search, cannedLLM{text: "Teilweise gutgeheissen [1]."}, 0)
	if err != nil {
		t.Fatal(err)
	}

	server := NewServer(NewHandlers(search, answer))
	serverT, clientT := mcp.NewInMemoryTransports()
	go func() { _ = server.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func TestListTools(t *testing.T) {
	session := newSession(t)

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"search_decisions", "answer_question", "get_decision"} {
		if !names[want] {
			t.Errorf("Expected tool %s to be registered", want)
		}
	}
}

func TestSearchDecisionsTool(t *testing.T) {
	session := newSession(t)

	tests := []struct {
		name        string
		args        map[string]any
		hits        int
		expectError bool
	}{
		{name: "query", args: map[string]any{"query": "Werklohnforderung"}, hits: 1},
		{name: "canton filter", args: map[string]any{"filters": map[string]any{"canton": "zh"}}, hits: 1},
		{name: "date filter", args: map[string]any{"filters": map[string]any{"date_from": "2024-01-01"}}, hits: 0},
		{name: "bad date", args: map[string]any{"filters": map[string]any{"date_to": "2.11.2023"}}, expectError: true},
		{name: "bad sort", args: map[string]any{"query": "Berufung", "sort": "oldest"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := callTool(t, session, "search_decisions", tt.args)
			if isError != tt.expectError {
				t.Fatalf("Expected error=%v, got %v (%s)", tt.expectError, isError, text)
			}
			if tt.expectError {
				return
			}
			var result models.SearchResult
			if err := json.Unmarshal([]byte(text), &result); err != nil {
				t.Fatalf("Failed to decode result: %v", err)
			}
			if len(result.Hits) != tt.hits {
				t.Errorf("Expected %d hits, got %d", tt.hits, len(result.Hits))
			}
		})
	}
}

func TestAnswerQuestionTool(t *testing.T) {
	session := newSession(t)

	text, isError := callTool(t, session, "answer_question", map[string]any{"question": "Werklohnforderung Berufung"})
	if isError {
		t.Fatalf("Unexpected tool error: %s", text)
	}
	if !strings.HasPrefix(text, "Teilweise gutgeheissen [1].") {
		t.Errorf("Expected answer text first, got %q", text)
	}
	if !strings.Contains(text, "[1] Obergericht Zürich, LB230012, 2023-11-02 (dec-zh)") {
		t.Errorf("Expected formatted source line, got %q", text)
	}

	_, isError = callTool(t, session, "answer_question", map[string]any{"question": " "})
	if !isError {
		t.Error("Expected blank question to fail")
	}
}

func TestGetDecisionTool(t *testing.T) {
	session := newSession(t)

	text, isError := callTool(t, session, "get_decision", map[string]any{"id": "dec-zh"})
	if isError {
		t.Fatalf("Unexpected tool error: %s", text)
	}
	var decision models.Decision
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		t.Fatal(err)
	}
	if decision.Docket == nil || *decision.Docket != "LB230012" {
		t.Errorf("Expected docket LB230012, got %v", decision.Docket)
	}

	if _, isError := callTool(t, session, "get_decision", map[string]any{"id": "nope"}); !isError {
		t.Error("Expected unknown id to fail")
	}
}
