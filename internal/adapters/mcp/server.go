// Package mcpadapter exposes the classifier as Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
)

const (
	ToolClassifyText        = "classify_text"
	ToolPropagate           = "propagate"
	ToolListCategories      = "list_categories"
	ToolConfigureCategories = "configure_categories"
	ToolPropagationTable    = "propagation_table"
)

type Server struct {
	classifier   ports.TextClassifier
	configurator ports.CategoryConfigurator
	propagator   ports.Propagator
	mcp          *server.MCPServer
}

func NewServer(
	name, version string,
	classifier ports.TextClassifier,
	configurator ports.CategoryConfigurator,
	propagator ports.Propagator,
) *Server {
	s := &Server{
		classifier:   classifier,
		configurator: configurator,
		propagator:   propagator,
		mcp: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving JSON-RPC over stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolClassifyText,
		mcp.WithDescription("Classify text against the seven active category prototypes."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to classify.")),
		mcp.WithNumber("max_chunk_size", mcp.Description("Upper bound on chunk length in characters."), mcp.Min(1)),
		mcp.WithNumber("min_chunk_size", mcp.Description("Lower bound on chunk length in characters."), mcp.Min(1)),
	), s.handleClassifyText)

	s.mcp.AddTool(mcp.NewTool(ToolPropagate,
		mcp.WithDescription("Run a chain of category symbols through the signed propagation table."),
		mcp.WithNumber("start_symbol", mcp.Required(), mcp.Description("Starting symbol 1..7."), mcp.Min(1), mcp.Max(7)),
		mcp.WithArray("chain", mcp.Description("Input symbols applied in order."), mcp.WithNumberItems()),
	), s.handlePropagate)

	s.mcp.AddTool(mcp.NewTool(ToolListCategories,
		mcp.WithDescription("List the active category labels, prototypes and configuration version."),
	), s.handleListCategories)

	s.mcp.AddTool(mcp.NewTool(ToolConfigureCategories,
		mcp.WithDescription("Replace the active category set. Exactly seven unique labels and prototypes are required."),
		mcp.WithArray("labels", mcp.Required(), mcp.WithStringItems()),
		mcp.WithArray("prototype_descriptions", mcp.Required(), mcp.WithStringItems()),
	), s.handleConfigureCategories)

	s.mcp.AddTool(mcp.NewTool(ToolPropagationTable,
		mcp.WithDescription("Return the 7x7 signed propagation table."),
	), s.handlePropagationTable)
}

func (s *Server) handleClassifyText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.classifier.Classify(ctx, domain.ClassifyRequest{
		Text: text,
		Options: domain.ClassifyOptions{
			MaxChunkSize: req.GetInt("max_chunk_size", 0),
			MinChunkSize: req.GetInt("min_chunk_size", 0),
		},
	})
	if err != nil {
		return toolError(ToolClassifyText, err), nil
	}
	return mcp.NewToolResultJSON(*result)
}

func (s *Server) handlePropagate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	rawStart, ok := args["start_symbol"]
	if !ok {
		return mcp.NewToolResultError(`required argument "start_symbol" not found`), nil
	}
	start, err := symbolArg(rawStart)
	if err != nil {
		return toolError(ToolPropagate, domain.WrapError(domain.ErrInvalidTransition, "propagate", fmt.Errorf("start_symbol: %w", err))), nil
	}
	chain, err := chainArg(args["chain"])
	if err != nil {
		return toolError(ToolPropagate, domain.WrapError(domain.ErrInvalidTransition, "propagate", err)), nil
	}

	result, err := s.propagator.Propagate(ctx, domain.PropagationRequest{StartSymbol: start, Chain: chain})
	if err != nil {
		return toolError(ToolPropagate, err), nil
	}
	return mcp.NewToolResultJSON(*result)
}

// chainArg decodes the chain without the lossy conversions of the SDK
// helpers: every item must be a whole number, otherwise the step is named.
func chainArg(raw any) ([]int, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("chain must be an array of symbols, got %T", raw)
	}
	chain := make([]int, len(items))
	for i, item := range items {
		n, err := symbolArg(item)
		if err != nil {
			return nil, fmt.Errorf("chain step %d: %w", i+1, err)
		}
		chain[i] = n
	}
	return chain, nil
}

// symbolArg accepts JSON numbers with no fractional part. Range checks are
// left to the propagator so they report the same step and state everywhere.
func symbolArg(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, fmt.Errorf("%v is not a whole-number symbol", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
			return 0, fmt.Errorf("%s is not a whole-number symbol", n)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%v (%T) is not a whole-number symbol", v, v)
	}
}

func (s *Server) handleListCategories(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(s.configurator.Categories())
}

func (s *Server) handleConfigureCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	labels, err := req.RequireStringSlice("labels")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prototypes, err := req.RequireStringSlice("prototype_descriptions")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	active, err := s.configurator.Configure(ctx, domain.CategoryConfig{Labels: labels, PrototypeDescriptions: prototypes})
	if err != nil {
		return toolError(ToolConfigureCategories, err), nil
	}
	return mcp.NewToolResultJSON(*active)
}

type tableResult struct {
	Entries domain.PropagationTable `json:"entries"`
}

func (s *Server) handlePropagationTable(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(tableResult{Entries: s.propagator.Table()})
}

// toolError reports a domain failure to the client as a tool result so the
// model can read the kind and react.
func toolError(tool string, err error) *mcp.CallToolResult {
	kind := domain.KindName(err)
	slog.Warn("mcp_tool_failed", "tool", tool, "kind", kind, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}
