// Package mcpserver exposes search, answers and stored decisions as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/internal/manager/services"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const (
	serverName    = "caselaw"
	serverVersion = "0.1.0"
	dateLayout    = "2006-01-02"
	defaultLimit  = 10
)

var ErrMissingArgument = errors.New("missing required argument")

// FilterArgs are the structured filters shared by the tools.
type FilterArgs struct {
	SourceIDs []string `json:"source_ids,omitempty" jsonschema:"restrict to these source ids"`
	Level     string   `json:"level,omitempty" jsonschema:"federal or cantonal"`
	Canton    string   `json:"canton,omitempty" jsonschema:"two-letter canton code such as ZH"`
	Language  string   `json:"language,omitempty" jsonschema:"decision language such as de or fr"`
	DateFrom  string   `json:"date_from,omitempty" jsonschema:"earliest decision date, YYYY-MM-DD"`
	DateTo    string   `json:"date_to,omitempty" jsonschema:"latest decision date, YYYY-MM-DD"`
}

// SearchArgs are the arguments of search_decisions.
type SearchArgs struct {
	Query  string `json:"query,omitempty" jsonschema:"free-text query; empty lists newest decisions"`
	Sort   string `json:"sort,omitempty" jsonschema:"relevance, date_desc or date_asc"`
	Limit  int    `json:"limit,omitempty" jsonschema:"number of hits, default 10"`
	Offset int    `json:"offset,omitempty" jsonschema:"hits to skip"`

	Filters FilterArgs `json:"filters,omitempty" jsonschema:"optional structured filters"`
}

// AnswerArgs are the arguments of answer_question.
type AnswerArgs struct {
	Question string     `json:"question" jsonschema:"question about Swiss case law"`
	Filters  FilterArgs `json:"filters,omitempty" jsonschema:"optional structured filters"`
}

// DecisionArgs are the arguments of get_decision.
type DecisionArgs struct {
	ID string `json:"id" jsonschema:"decision id from a search hit"`
}

// Handlers adapts the services to MCP tool handlers.
type Handlers struct {
	search *services.SearchService
	answer *services.AnswerService
	logger zerolog.Logger
}

// NewHandlers creates tool handlers. Logs go to stderr because stdout
// carries the protocol.
func NewHandlers(search *services.SearchService, answer *services.AnswerService) *Handlers {
	return &Handlers{
		search: search,
		answer: answer,
		logger: util.NewLoggerTo(os.Stderr, util.LevelFromEnv()),
	}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(h *Handlers) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		Instructions: "Use search_decisions to find Swiss court decisions, get_decision to read one in full " +
			"and answer_question for a cited answer drawn from the indexed decisions.",
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_decisions",
		Description: "Hybrid full-text and semantic search over indexed court decisions with filters.",
	}, h.SearchDecisions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "answer_question",
		Description: "Answer a legal question from the indexed decisions, citing them as [n].",
	}, h.AnswerQuestion)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_decision",
		Description: "Return the full text and metadata of one decision by id.",
	}, h.GetDecision)

	return server
}

// Run serves the tools over stdio until ctx ends.
func Run(ctx context.Context, h *Handlers) error {
	return NewServer(h).Run(ctx, &mcp.StdioTransport{})
}

// SearchDecisions handles search_decisions.
func (h *Handlers) SearchDecisions(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	filters, err := args.Filters.toFilters()
	if err != nil {
		return nil, nil, err
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	result, err := h.search.Search(ctx, &models.SearchRequest{
		Query:   args.Query,
		Filters: *filters,
		Sort:    args.Sort,
		Limit:   limit,
		Offset:  args.Offset,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("query", args.Query).Msg("search_decisions failed")
		return nil, nil, err
	}

	h.logger.Debug().Str("query", args.Query).Int("hits", len(result.Hits)).Msg("search_decisions")
	return jsonResult(result)
}

// AnswerQuestion handles answer_question.
func (h *Handlers) AnswerQuestion(ctx context.Context, _ *mcp.CallToolRequest, args AnswerArgs) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Question) == "" {
		return nil, nil, fmt.Errorf("%w: question", ErrMissingArgument)
	}
	filters, err := args.Filters.toFilters()
	if err != nil {
		return nil, nil, err
	}

	answer, err := h.answer.Answer(ctx, args.Question, *filters)
	if err != nil {
		h.logger.Error().Err(err).Msg("answer_question failed")
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatAnswer(answer)}},
	}, nil, nil
}

// GetDecision handles get_decision.
func (h *Handlers) GetDecision(ctx context.Context, _ *mcp.CallToolRequest, args DecisionArgs) (*mcp.CallToolResult, any, error) {
	id := strings.TrimSpace(args.ID)
	if id == "" {
		return nil, nil, fmt.Errorf("%w: id", ErrMissingArgument)
	}
	decision, err := h.search.GetDecision(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(decision)
}

func (f *FilterArgs) toFilters() (*models.SearchFilters, error) {
	filters := &models.SearchFilters{
		SourceIDs: f.SourceIDs,
		Level:     f.Level,
		Canton:    f.Canton,
		Language:  f.Language,
	}
	var err error
	if filters.DateFrom, err = parseDate("date_from", f.DateFrom); err != nil {
		return nil, err
	}
	if filters.DateTo, err = parseDate("date_to", f.DateTo); err != nil {
		return nil, err
	}
	return filters, nil
}

func parseDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// formatAnswer renders the answer followed by its numbered sources.
func formatAnswer(a *models.Answer) string {
	var b strings.Builder
	b.WriteString(a.Answer)
	if len(a.Citations) == 0 {
		return b.String()
	}
	b.WriteString("\n\nSources:\n")
	for _, c := range a.Citations {
		fmt.Fprintf(&b, "%s %s", c.Marker, c.SourceName)
		if c.Docket != nil {
			fmt.Fprintf(&b, ", %s", *c.Docket)
		}
		if c.DecisionDate != nil {
			fmt.Fprintf(&b, ", %s", c.DecisionDate.Format(dateLayout))
		}
		fmt.Fprintf(&b, " (%s) %s\n", c.DecisionID, c.URL)
	}
	return b.String()
}
