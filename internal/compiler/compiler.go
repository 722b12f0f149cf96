// Package compiler adapts the run-assembly toolchain to the build /
// post-process contract of a compilation host: run the toolchain, stage
// the .rom it writes, and later turn that .rom into a structured listing.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deixis/runasm/internal/artifact"
	"github.com/deixis/runasm/internal/config"
	"github.com/deixis/runasm/internal/disasm"
	"github.com/deixis/runasm/internal/observability"
	"github.com/deixis/runasm/internal/output"
	"github.com/deixis/runasm/internal/report"
	"github.com/deixis/runasm/internal/runner"
)

// PostProcessDummy marks that output needs no host-side post-processing
// beyond the objdump call.
const PostProcessDummy = "dummy"

// CommandRunner executes external processes.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts runner.ExecOptions) (*runner.Result, error)
}

// Info describes the toolchain as seen by the host. It is filled in by
// Initialise and not changed afterwards.
type Info struct {
	Exe             string
	Version         string
	SupportsCfg     bool
	SupportsAstView bool
	PostProcess     string
	Options         []string // discovered by the ArgumentParser
}

// Compiler is the run-assembly adapter.
type Compiler struct {
	Info               Info
	Runner             CommandRunner
	Disassembler       *disasm.Invoker
	ArgumentParser     ArgumentParser
	CaptureDiagnostics bool // keep toolchain stderr on the result
	Metrics            *observability.Metrics
	Logger             *slog.Logger
}

// Option configures a Compiler built by New.
type Option func(*Compiler)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Compiler) { c.Metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.Logger = l }
}

// New builds an uninitialised Compiler from cfg. Call Initialise before use.
func New(cfg *config.Config, r CommandRunner, opts ...Option) (*Compiler, error) {
	argv, err := cfg.DisassemblerArgv()
	if err != nil {
		return nil, err
	}

	var parser ArgumentParser = NopParser{}
	if cfg.ArgumentParser() == config.ParserHelp {
		parser = HelpParser{}
	}

	c := &Compiler{
		Info:               Info{Exe: cfg.Toolchain.Exe, Version: cfg.ToolchainVersion()},
		Runner:             r,
		Disassembler:       &disasm.Invoker{Runner: r, Command: argv},
		ArgumentParser:     parser,
		CaptureDiagnostics: cfg.Toolchain.CaptureDiagnostics,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Initialise derives the capabilities from the configured toolchain version,
// then hands off to the ArgumentParser. The version is never probed.
func (c *Compiler) Initialise(ctx context.Context) error {
	c.logger().Debug("Toolchain version", "exe", c.Info.Exe, "version", c.Info.Version)

	c.Info.SupportsCfg = IsCfgCompiler(c.Info.Version)
	c.Info.SupportsAstView = false
	c.Info.PostProcess = PostProcessDummy

	if c.ArgumentParser == nil {
		return nil
	}
	return c.ArgumentParser.Parse(ctx, c)
}

// OutputFilename returns the staged artifact path for a build in dir. The
// name is the same for every build, so two builds must never share dir.
func (c *Compiler) OutputFilename(dir string) string {
	return artifact.OutputPath(dir)
}

// SupportsObjdump reports that Objdump is implemented.
func (c *Compiler) SupportsObjdump() bool {
	return true
}

// BuildRequest is one compilation of one input file.
type BuildRequest struct {
	Exe   string // defaults to Info.Exe
	Input string

	// Options and ExecOptions are accepted from the host but not used: the
	// toolchain is always run as "<exe> <input>" with empty options.
	Options     []string
	ExecOptions runner.ExecOptions
}

// RunCompiler runs the toolchain on req.Input and stages the artifact it
// wrote next to the input.
//
// The caller must own the input's directory for the duration of the call:
// the artifact is staged under a fixed name in that directory.
//
// Success is decided by artifact presence alone: Code is 0 when
// <dir>/<base>.rom exists after the run and 1 otherwise, whatever the
// toolchain's own exit status. Toolchain stderr is dropped unless
// CaptureDiagnostics is set. A failed copy is returned as an
// *artifact.CopyError together with the (failed) result.
func (c *Compiler) RunCompiler(ctx context.Context, req BuildRequest) (*report.BuildResult, error) {
	start := time.Now()

	exe := req.Exe
	if exe == "" {
		exe = c.Info.Exe
	}
	if exe == "" {
		return nil, fmt.Errorf("no toolchain executable configured")
	}
	if req.Input == "" {
		return nil, fmt.Errorf("no input file")
	}

	res, err := c.Runner.Run(ctx, []string{exe, req.Input}, runner.ExecOptions{})
	if err != nil {
		return nil, fmt.Errorf("running toolchain: %w", err)
	}

	result := &report.BuildResult{
		ID:            res.RunID,
		InputFilename: req.Input,
		Stdout:        output.Parse(res.Stdout, req.Input),
		ToolchainExit: res.ExitCode,
		Truncated:     res.Truncated,
	}
	if c.CaptureDiagnostics {
		result.Stderr = string(res.Stderr)
	}

	err = c.stage(result, artifact.Locate(req.Input))
	c.Metrics.RecordBuild(ctx, result.Succeeded(), res.ExitCode, time.Since(start))
	return result, err
}

func (c *Compiler) stage(result *report.BuildResult, desc artifact.Descriptor) error {
	if err := desc.Probe(); err != nil {
		c.logger().Debug("No artifact produced", "expected", desc.Expected, "toolchainExit", result.ToolchainExit)
		result.Code = report.CodeFailure
		return nil
	}
	if err := desc.Stage(); err != nil {
		c.logger().Error("Staging artifact failed", "error", err)
		result.Code = report.CodeFailure
		return err
	}
	c.logger().Debug("Copied artifact", "src", desc.Expected, "dst", desc.Canonical)
	result.Code = report.CodeSuccess
	result.OutputPath = desc.Canonical
	return nil
}

// Disassemble runs the disassembler in addressed mode against outputPath.
func (c *Compiler) Disassemble(ctx context.Context, outputPath string) (disasm.Listing, error) {
	return c.disassemble(ctx, outputPath, disasm.ModeAddressed)
}

// ExecPostProcess disassembles outputPath in mode and sets result.Asm.
// On failure result is left untouched and a *disasm.Error is returned.
func (c *Compiler) ExecPostProcess(ctx context.Context, result *report.BuildResult, outputPath string, mode disasm.Mode) (*report.BuildResult, error) {
	listing, err := c.disassemble(ctx, outputPath, mode)
	if err != nil {
		return nil, err
	}
	result.Asm = listing
	return result, nil
}

// Objdump is the host's generic object-dump entry point. maxSize, intel
// and demangle are accepted for interface compatibility and ignored; see
// Capabilities.
func (c *Compiler) Objdump(ctx context.Context, outputPath string, result *report.BuildResult, maxSize int, intel, demangle bool) (*report.BuildResult, error) {
	return c.ExecPostProcess(ctx, result, outputPath, disasm.ModeAddressed)
}

func (c *Compiler) disassemble(ctx context.Context, outputPath string, mode disasm.Mode) (disasm.Listing, error) {
	start := time.Now()
	listing, err := c.Disassembler.Disassemble(ctx, outputPath, mode)

	stage := ""
	if err != nil {
		var de *disasm.Error
		if errors.As(err, &de) {
			stage = string(de.Stage)
		} else {
			stage = "unknown"
		}
		c.logger().Warn("Disassembly unavailable", "path", outputPath, "stage", stage, "error", err)
	}
	c.Metrics.RecordDisassembly(ctx, stage, time.Since(start))
	return listing, err
}

func (c *Compiler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
