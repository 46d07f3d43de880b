// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala graph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/events"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/kind"
)

// Server wraps the MCP server with Othala tools. Tool handlers hold the
// store's owner lock around graph access; coalesced update deliveries run
// on timer goroutines even in stdio mode.
type Server struct {
	mcp   *server.MCPServer
	store *graph.Store
	db    index.EntityIndex
}

// New creates a new MCP server with all Othala tools registered.
func New(store *graph.Store, db index.EntityIndex) *Server {
	s := &Server{store: store, db: db}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entities",
		mcp.WithDescription("Full-text search through entity names and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchEntities)

	s.mcp.AddTool(mcp.NewTool("read_entity",
		mcp.WithDescription("Read the full record of one entity, including its backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
	), s.readEntity)

	s.mcp.AddTool(mcp.NewTool("create_entity",
		mcp.WithDescription("Create a new entity of a given kind. "+
			"Reference other entities in the content using [label](user://<id>) links. "+
			"Read the contract first via the get_record_contract tool or the "+
			"othala://record-format resource."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Entity kind: note, task, collection, chat or media")),
		mcp.WithString("name", mcp.Description("Display name")),
		mcp.WithString("content", mcp.Description("Body content for kinds that carry one")),
	), s.createEntity)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the canonical Othala entity record contract. "+
			"Call this before creating entities to ensure correct structure."),
	), s.getRecordContract)

	s.mcp.AddTool(mcp.NewTool("list_uncategorized",
		mcp.WithDescription("List entities that have no parent relations."),
	), s.listUncategorized)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all entities that reference the specified entity."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the entity to find backlinks for")),
	), s.getBacklinks)

	// Resource: entity record contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://record-format", "Entity Record Contract",
			mcp.WithResourceDescription("Canonical entity record format for the Othala graph."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
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

func (s *Server) searchEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.store.Lock()
	defer s.store.Unlock()
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e := s.store.Get(id)
	if e == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}

	payload := struct {
		entity.Record
		Backlinks []string `json:"backlinks"`
	}{Record: e.ToRecord(), Backlinks: []string{}}
	for _, l := range e.Backlinks {
		if l.Source != nil {
			payload.Backlinks = append(payload.Backlinks, l.Source.ID)
		}
	}

	out, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.store.Lock()
	defer s.store.Unlock()
	k, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spec, err := kind.Lookup(kind.Kind(k))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported kind: %s", k)), nil
	}
	if !spec.UserCreatable {
		return mcp.NewToolResultError(fmt.Sprintf("kind is not user-creatable: %s", k)), nil
	}

	rec := entity.Record{Kind: spec.Kind}
	if name, nameErr := req.RequireString("name"); nameErr == nil {
		rec.Name = name
	}
	if content, contentErr := req.RequireString("content"); contentErr == nil && content != "" {
		if !spec.Has(kind.CapContent) {
			return mcp.NewToolResultError(fmt.Sprintf("kind %s has no content", k)), nil
		}
		rec.Properties = map[string]any{"content": content}
	}

	e, err := s.store.Create(rec, events.OriginUser)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", e.ID)), nil
}

func (s *Server) listUncategorized(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.store.Lock()
	defer s.store.Unlock()
	var lines []string
	for _, e := range s.store.GetUncategorized() {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", e.ID, e.Kind, e.Name))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no uncategorized entities"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.store.Lock()
	defer s.store.Unlock()
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e := s.store.Get(id)
	if e == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	var sources []string
	for _, l := range e.Backlinks {
		if l.Source != nil {
			sources = append(sources, l.Source.ID)
		}
	}
	if len(sources) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(sources, "\n")), nil
}
