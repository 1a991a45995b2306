// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes KeepTrack tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/keeptrack/internal/apperr"
	"github.com/starford/keeptrack/internal/tracker"
)

// InstantFormat documents the timestamp form accepted by record_observation.
const InstantFormat = `Observation instants are RFC 3339 timestamps in UTC with a trailing "Z".
Seconds are required; fractional seconds up to nanosecond precision are optional.

Valid:   2025-05-06T22:53:40Z
Valid:   2025-05-06T22:53:40.311020299Z
Invalid: 2025-05-06T22:53:40+02:00 (offset)
Invalid: 2025-05-06 22:53:40Z      (no T separator)
Invalid: 2025-05-06T22:53Z         (no seconds)
`

const instantFormatURI = "keeptrack://instant-format"

// Server wraps the MCP server with KeepTrack tools.
type Server struct {
	mcp *server.MCPServer
	svc *tracker.Service
}

// New creates a new MCP server with all KeepTrack tools registered.
func New(svc *tracker.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"KeepTrack",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List every tracked item."),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Read a single item by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a new item. Both fields are required; empty strings are allowed."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Free-form description")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("list_observations",
		mcp.WithDescription("List the observations recorded for an item."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id")),
	), s.listObservations)

	s.mcp.AddTool(mcp.NewTool("record_observation",
		mcp.WithDescription("Record an observation with a start and end instant. "+
			"Instants must be UTC RFC 3339 timestamps ending in Z; see the "+
			instantFormatURI+" resource."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Start instant, e.g. 2025-05-06T22:53:40Z")),
		mcp.WithString("end", mcp.Required(), mcp.Description("End instant, e.g. 2025-05-06T23:30:00Z")),
	), s.recordObservation)

	s.mcp.AddResource(
		mcp.NewResource(instantFormatURI, "Instant Format",
			mcp.WithResourceDescription("Timestamp format accepted for observation instants."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readInstantFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult maps service failures to tool errors. Storage failures are
// reported without their internal detail.
func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrInvalidID):
		return mcp.NewToolResultError("invalid item id")
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("item not found")
	case errors.Is(err, apperr.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, apperr.ErrMalformed):
		return mcp.NewToolResultError("item record is unreadable")
	default:
		return mcp.NewToolResultError("storage failure")
	}
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListItems(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(items)
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.GetItem(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(item)
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	description, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.CreateItem(ctx, tracker.ItemInput{Name: name, Description: description})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(item)
}

func (s *Server) listObservations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obs, err := s.svc.ListObservations(ctx, itemID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(obs)
}

func (s *Server) recordObservation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := req.RequireString("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obs, err := s.svc.RecordObservation(ctx, itemID, tracker.ObservationInput{Start: start, End: end})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(obs)
}

func (s *Server) readInstantFormat(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      instantFormatURI,
			MIMEType: "text/plain",
			Text:     InstantFormat,
		},
	}, nil
}
