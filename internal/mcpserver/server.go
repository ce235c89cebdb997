// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes estatehub tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/dashboard"
	"github.com/starford/estatehub/internal/i18n"
	"github.com/starford/estatehub/internal/models"
	"github.com/starford/estatehub/internal/store"
)

const guideURI = "estatehub://bin-rules"

// Server wraps the MCP server with estatehub tools. Every tool acts as
// one tenant.
type Server struct {
	mcp      *server.MCPServer
	svc      *dashboard.Service
	resolver *i18n.Resolver
	owner    string
	fetcher  *fetcher
}

// New creates a new MCP server with all estatehub tools registered.
func New(svc *dashboard.Service, resolver *i18n.Resolver, owner string) *Server {
	s := &Server{svc: svc, resolver: resolver, owner: owner, fetcher: newFetcher()}

	s.mcp = server.NewMCPServer(
		"estatehub",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List projects with their ids."),
		mcp.WithString("deleted", mcp.Description("Soft-delete filter"), mcp.Enum("active", "binned", "any")),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("list_bin",
		mcp.WithDescription("List binned entities of every kind, newest first."),
	), s.listBin)

	kindArg := mcp.WithString("kind", mcp.Required(), mcp.Description("Entity kind"),
		mcp.Enum("project", "property", "case_study", "post"))
	idArg := mcp.WithNumber("id", mcp.Required(), mcp.Description("Entity id"))

	s.mcp.AddTool(mcp.NewTool("bin_entity",
		mcp.WithDescription("Move an entity to the bin. Read the bin rules resource first."),
		kindArg, idArg,
	), s.binEntity)

	s.mcp.AddTool(mcp.NewTool("restore_entity",
		mcp.WithDescription("Restore a binned entity."),
		kindArg, idArg,
	), s.restoreEntity)

	s.mcp.AddTool(mcp.NewTool("purge_entity",
		mcp.WithDescription("Permanently delete an entity and everything under it."),
		mcp.WithDestructiveHintAnnotation(true),
		kindArg, idArg,
	), s.purgeEntity)

	s.mcp.AddTool(mcp.NewTool("get_dictionary",
		mcp.WithDescription("Return the UI dictionary for a locale as JSON, translating it on first use."),
		mcp.WithString("locale", mcp.Required(), mcp.Description("Language code, e.g. fr or ar")),
	), s.getDictionary)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Attach an image to a post from an http(s) URL or a base64 data URI."),
		mcp.WithNumber("post_id", mcp.Required(), mcp.Description("Post id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name")),
	), s.uploadImage)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Bin Rules",
			mcp.WithResourceDescription("How bin, restore and purge behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuide,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// toolError turns a service error into a tool error result.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrPrecondition):
		return mcp.NewToolResultError("not allowed: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

type refInput struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

func refArg(req mcp.CallToolRequest) (models.Ref, error) {
	var in refInput
	if err := req.BindArguments(&in); err != nil {
		return models.Ref{}, fmt.Errorf("invalid arguments: %w", err)
	}
	kind, err := models.ParseKind(in.Kind)
	if err != nil {
		return models.Ref{}, err
	}
	if in.ID <= 0 {
		return models.Ref{}, errors.New("id must be positive")
	}
	return models.Ref{Kind: kind, ID: in.ID}, nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in struct {
		Deleted string `json:"deleted"`
	}
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	deleted, err := store.ParseDeleted(in.Deleted)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.svc.ListProjects(ctx, s.owner, dashboard.ListQuery{Deleted: deleted, Limit: 200})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(page)
}

func (s *Server) listBin(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.BinListing(ctx, s.owner)
	if err != nil {
		return toolError(err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("bin is empty"), nil
	}
	return jsonResult(items)
}

func (s *Server) binEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := refArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Bin(ctx, s.owner, ref); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("binned: %s", ref)), nil
}

func (s *Server) restoreEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := refArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Restore(ctx, s.owner, ref); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("restored: %s", ref)), nil
}

func (s *Server) purgeEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := refArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Purge(ctx, s.owner, ref); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("purged: %s", ref)), nil
}

func (s *Server) getDictionary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	locale, err := req.RequireString("locale")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tree, err := s.resolver.Resolve(ctx, locale)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(tree)
}

func (s *Server) readGuide(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     LifecycleGuide,
		},
	}, nil
}
