package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/prctx/internal/command"
	"github.com/cexll/prctx/internal/prompt"
)

// CommandParams is the input of every pull request tool.
type CommandParams struct {
	Argument string `json:"argument,omitempty" jsonschema:"The command argument, e.g. owner,repo,number or a pull request URL"`
	Offsets  string `json:"offsets,omitempty" jsonschema:"Unit of section offsets: bytes (default) or runes"`
}

// DocumentResult is the structured output of a pull request tool. The text
// content of the result carries Text alone.
type DocumentResult struct {
	PullRequest string           `json:"pull_request" jsonschema:"The resolved pull request as owner/repo#number"`
	Title       string           `json:"title"`
	Text        string           `json:"text" jsonschema:"The assembled document"`
	Sections    []prompt.Section `json:"sections" jsonschema:"Ranges of each fragment inside text, in the requested unit"`
}

// CompleteParams is the input of the completion tool.
type CompleteParams struct {
	Command  string `json:"command" jsonschema:"The command whose argument is being completed"`
	Argument string `json:"argument,omitempty" jsonschema:"The partially typed argument"`
}

// CompleteResult lists suggested arguments.
type CompleteResult struct {
	Completions []command.Completion `json:"completions"`
}

const completeTool = "complete"

// newServer exposes one tool per registry entry plus the completion tool.
func newServer(reg *command.Registry, logger *slog.Logger, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "prctx-pr-server",
		Version: version,
	}, nil)

	for _, c := range reg.Commands() {
		description := c.Description
		if c.ArgHint != "" {
			description += ". Argument: " + c.ArgHint
		}
		mcp.AddTool(server, &mcp.Tool{Name: c.Name, Description: description}, commandHandler(c, logger))
		logger.Debug("registered tool", "name", c.Name)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        completeTool,
		Description: "Suggest arguments for a pull request command",
	}, completeHandler(reg, logger))
	return server
}

func commandHandler(c command.Command, logger *slog.Logger) mcp.ToolHandlerFor[CommandParams, DocumentResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, params CommandParams) (*mcp.CallToolResult, DocumentResult, error) {
		arg := strings.TrimSpace(params.Argument)
		logger.Info("tool call", "tool", c.Name, "argument", arg)

		if c.ArgRequired && arg == "" {
			return nil, DocumentResult{}, fmt.Errorf("argument is required: %s", c.ArgHint)
		}
		offsets, err := prompt.ParseOffsets(params.Offsets)
		if err != nil {
			return nil, DocumentResult{}, err
		}

		out, err := c.Run(ctx, arg)
		if err != nil {
			logger.Warn("tool call failed", "tool", c.Name, "error", err)
			return nil, DocumentResult{}, err
		}

		doc := out.Document.In(offsets)
		sections := doc.Sections
		if sections == nil {
			sections = []prompt.Section{}
		}
		result := DocumentResult{
			PullRequest: out.Identity.String(),
			Title:       out.Title,
			Text:        doc.Text,
			Sections:    sections,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: doc.Text}},
		}, result, nil
	}
}

func completeHandler(reg *command.Registry, logger *slog.Logger) mcp.ToolHandlerFor[CompleteParams, CompleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, params CompleteParams) (*mcp.CallToolResult, CompleteResult, error) {
		got, err := reg.Complete(ctx, params.Command, params.Argument)
		if err != nil {
			logger.Warn("completion failed", "command", params.Command, "error", err)
			return nil, CompleteResult{}, err
		}
		if got == nil {
			got = []command.Completion{}
		}
		return nil, CompleteResult{Completions: got}, nil
	}
}
