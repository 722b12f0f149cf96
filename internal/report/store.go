// Package report holds the build result handed to the orchestration layer
// and persists results between the build and the later objdump call.
package report

import (
	"fmt"

	"github.com/deixis/runasm/internal/disasm"
	"github.com/deixis/runasm/internal/output"
)

// Exit codes of a build. Artifact presence alone decides between them.
const (
	CodeSuccess = 0
	CodeFailure = 1
)

// Store persists and retrieves build results.
type Store interface {
	Save(result *BuildResult) error
	Load(runID string) (*BuildResult, error)
}

// BuildResult is created by a build and annotated in place by later stages.
type BuildResult struct {
	ID            string         `json:"id"`
	Code          int            `json:"code"`
	InputFilename string         `json:"inputFilename"`
	Stdout        []output.Line  `json:"stdout"`
	Stderr        string         `json:"stderr"`
	OutputPath    string         `json:"outputPath,omitempty"` // set on success
	ToolchainExit int            `json:"toolchainExit"`        // informational only
	Truncated     bool           `json:"truncated,omitempty"`
	Asm           disasm.Listing `json:"asm,omitempty"`
}

// Succeeded reports whether the build produced an artifact.
func (r *BuildResult) Succeeded() bool {
	return r.Code == CodeSuccess
}

// ExpectOutput returns an error if the build has no staged artifact.
func (r *BuildResult) ExpectOutput() error {
	if !r.Succeeded() || r.OutputPath == "" {
		return fmt.Errorf("build %s produced no output artifact (code %d)", r.ID, r.Code)
	}
	return nil
}
