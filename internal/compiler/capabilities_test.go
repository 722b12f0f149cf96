package compiler

import (
	"context"
	"reflect"
	"testing"

	"github.com/deixis/runasm/internal/config"
	"github.com/deixis/runasm/internal/runner"
)

func TestIsCfgCompiler(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"1819", false},
		{"clang version 17.0.0", true},
		{"Apple clang 15", true},
		{"g++ (GCC) 13.2.0", true},
		{"gcc 13.2.0", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCfgCompiler(tt.version); got != tt.want {
			t.Errorf("IsCfgCompiler(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestInitialise_FixedVersion(t *testing.T) {
	f := &fakeRunner{}
	c, err := New(&config.Config{Toolchain: config.ToolchainConfig{Exe: "asm"}}, f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Initialise(context.Background()); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("Initialise spawned %d processes, want 0", len(f.calls))
	}

	want := Capabilities{
		Version:         "1819",
		SupportsObjdump: true,
		SupportsAstView: false,
		SupportsCfg:     false,
		PostProcess:     PostProcessDummy,
	}
	if got := c.Capabilities(); !reflect.DeepEqual(got, want) {
		t.Errorf("Capabilities() = %+v, want %+v", got, want)
	}
}

func TestNew_VersionSetAtConstruction(t *testing.T) {
	c, err := New(&config.Config{}, &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Info.Version != config.DefaultToolchainVersion {
		t.Errorf("Info.Version = %q, want %q", c.Info.Version, config.DefaultToolchainVersion)
	}

	c, err = New(&config.Config{Toolchain: config.ToolchainConfig{Version: "run-asm 2"}}, &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Info.Version != "run-asm 2" {
		t.Errorf("Info.Version = %q, want %q", c.Info.Version, "run-asm 2")
	}
}

func TestInitialise_ConfiguredVersionDrivesCfg(t *testing.T) {
	cfg := &config.Config{Toolchain: config.ToolchainConfig{Version: "clang-run 2"}}
	c, err := New(cfg, &fakeRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Initialise(context.Background()); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if !c.Info.SupportsCfg {
		t.Error("SupportsCfg = false, want true")
	}
	if c.Info.SupportsAstView {
		t.Error("SupportsAstView = true, want false")
	}
}

type helpRunner struct {
	argv []string
	out  string
	err  error
}

func (h *helpRunner) Run(_ context.Context, argv []string, _ runner.ExecOptions) (*runner.Result, error) {
	h.argv = argv
	if h.err != nil {
		return nil, h.err
	}
	return &runner.Result{ExitCode: 1, Stdout: []byte(h.out)}, nil
}

func TestHelpParser(t *testing.T) {
	h := &helpRunner{out: `usage: asm [options] file
  -o FILE     write output to FILE
  --listing   emit a listing
	-v          verbose
not-a-flag -x
`}
	cfg := &config.Config{Toolchain: config.ToolchainConfig{Exe: "asm", ArgumentParser: config.ParserHelp}}
	c, err := New(cfg, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Initialise(context.Background()); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if !reflect.DeepEqual(h.argv, []string{"asm", "--help"}) {
		t.Errorf("argv = %v", h.argv)
	}
	want := []string{"--listing", "-o", "-v"}
	if !reflect.DeepEqual(c.Info.Options, want) {
		t.Errorf("Options = %v, want %v", c.Info.Options, want)
	}
}

func TestHelpParser_SpawnFailureIsNotFatal(t *testing.T) {
	h := &helpRunner{err: context.DeadlineExceeded}
	c := &Compiler{Runner: h, Info: Info{Exe: "asm"}, ArgumentParser: HelpParser{}}
	if err := c.Initialise(context.Background()); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if len(c.Info.Options) != 0 {
		t.Errorf("Options = %v, want none", c.Info.Options)
	}
}
