package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deixis/runasm/internal/artifact"
	"github.com/deixis/runasm/internal/compiler"
	"github.com/deixis/runasm/internal/output"
	"github.com/deixis/runasm/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type capabilitiesParams struct{}

func (h *handler) capabilitiesHandler(ctx context.Context, req *mcp.CallToolRequest, _ capabilitiesParams) (*mcp.CallToolResult, any, error) {
	return jsonResult(h.compiler.Capabilities())
}

type buildParams struct {
	Input string `json:"input" jsonschema:"absolute path of the .run source file"`
	Exe   string `json:"exe,omitempty" jsonschema:"toolchain executable; defaults to the configured toolchain.exe"`
}

func (h *handler) buildHandler(ctx context.Context, req *mcp.CallToolRequest, params buildParams) (*mcp.CallToolResult, any, error) {
	if params.Input == "" {
		return errorResult("input is required")
	}
	if !filepath.IsAbs(params.Input) {
		return errorResult(fmt.Sprintf("input must be an absolute path, got %q", params.Input))
	}

	result, err := h.compiler.RunCompiler(ctx, compiler.BuildRequest{Exe: params.Exe, Input: params.Input})
	if result != nil {
		_ = h.store.Save(result)
	}
	if err != nil {
		var copyErr *artifact.CopyError
		if errors.As(err, &copyErr) && result != nil {
			return errorResult(fmt.Sprintf("Run: %s\nStaging failed: %v", result.ID, err))
		}
		return errorResult(fmt.Sprintf("build failed: %v", err))
	}

	return textResult(formatBuild(result))
}

func formatBuild(r *report.BuildResult) string {
	var b strings.Builder

	if r.Succeeded() {
		fmt.Fprintln(&b, "Status: OK")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	fmt.Fprintf(&b, "Code: %d\n", r.Code)
	if r.Succeeded() {
		fmt.Fprintf(&b, "Output: %s\n", r.OutputPath)
	} else {
		fmt.Fprintln(&b, "No output artifact produced.")
	}

	if len(r.Stdout) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprint(&b, output.String(r.Stdout))
	}
	if r.Stderr != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Diagnostics:")
		fmt.Fprint(&b, r.Stderr)
	}

	if r.Succeeded() {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Disassemble with runasm_objdump(run_id=%q).\n", r.ID)
	}
	return b.String()
}

type objdumpParams struct {
	RunID    string `json:"run_id" jsonschema:"the run ID from a runasm_build result"`
	Intel    bool   `json:"intel,omitempty" jsonschema:"accepted for compatibility; has no effect"`
	Demangle bool   `json:"demangle,omitempty" jsonschema:"accepted for compatibility; has no effect"`
}

func (h *handler) objdumpHandler(ctx context.Context, req *mcp.CallToolRequest, params objdumpParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	stored, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	if err := stored.ExpectOutput(); err != nil {
		return errorResult(err.Error())
	}

	// Stored results are shared with concurrent calls; never mutate them.
	result := *stored
	if _, err := h.compiler.Objdump(ctx, result.OutputPath, &result, 0, params.Intel, params.Demangle); err != nil {
		return errorResult(fmt.Sprintf("Disassembly unavailable: %v", err))
	}
	_ = h.store.Save(&result)

	return textResult(fmt.Sprintf("Run: %s\nInstructions: %d\n\n%s", result.ID, len(result.Asm), result.Asm.String()))
}

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a runasm_build result"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	return jsonResult(result)
}
