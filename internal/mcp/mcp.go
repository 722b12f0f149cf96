// Package mcp exposes the runasm adapter as an MCP server.
package mcp

import (
	_ "embed"
	"encoding/json"

	"github.com/deixis/runasm"
	"github.com/deixis/runasm/internal/compiler"
	"github.com/deixis/runasm/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	compiler *compiler.Compiler
	store    report.Store
}

// NewServer creates an MCP server with all runasm tools registered. c must
// already be initialised.
func NewServer(c *compiler.Compiler, store report.Store) *mcp.Server {
	h := &handler{compiler: c, store: store}

	s := mcp.NewServer(&mcp.Implementation{Name: "runasm", Version: runasm.Version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "runasm_capabilities",
		Description: "Report the toolchain version and which views (objdump, AST, CFG) the adapter supports.",
	}, h.capabilitiesHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "runasm_build",
		Description: `Assemble a .run source file into a .rom image.

The image is staged as output.rom in the source's directory; give every build its own directory.
Returns the run ID, the exit code (0 = image produced, 1 = none), and the toolchain output.`,
	}, h.buildHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "runasm_objdump",
		Description: `Disassemble the image produced by a successful runasm_build run.

Returns one line per instruction: address, opcode bytes, and text.`,
	}, h.objdumpHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "runasm_inspect",
		Description: "Return the stored result of a runasm_build run as JSON, including any disassembly.",
	}, h.inspectHandler)

	return s
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}

// jsonResult renders v as indented JSON.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("encoding result: " + err.Error())
	}
	return textResult(string(data))
}
