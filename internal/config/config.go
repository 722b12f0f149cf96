// Package config loads the optional .runasm YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up from the working directory upward.
const FileName = ".runasm"

// Defaults for zero-valued fields.
const (
	DefaultTimeout          = 0 // no timeout; the caller's context bounds the run
	DefaultMaxOutput        = 1 << 20
	DefaultToolchainVersion = "1819"
	DefaultDisassembler     = "./runcpu/disassemble.py"
	DefaultStoreCapacity    = 5
)

// Argument parser names accepted by toolchain.argument_parser.
const (
	ParserNone = "none"
	ParserHelp = "help"
)

// Config holds the parsed .runasm configuration.
// All fields are optional; zero values select defaults.
type Config struct {
	Version      int                `yaml:"version"`
	RawTimeout   string             `yaml:"timeout"`    // e.g. "30s"
	RawMaxOutput int                `yaml:"max_output"` // bytes
	Toolchain    ToolchainConfig    `yaml:"toolchain"`
	Disassembler DisassemblerConfig `yaml:"disassembler"`
	Store        StoreConfig        `yaml:"store"`
}

// ToolchainConfig describes the compiling process.
type ToolchainConfig struct {
	Exe                string `yaml:"exe"`
	Version            string `yaml:"version"`             // fixed; never probed
	CaptureDiagnostics bool   `yaml:"capture_diagnostics"` // keep stderr on the result
	ArgumentParser     string `yaml:"argument_parser"`     // none | help
}

// DisassemblerConfig describes the post-processing process.
type DisassemblerConfig struct {
	Command string `yaml:"command"` // split with shell quoting rules
}

// StoreConfig sizes the in-memory result cache.
type StoreConfig struct {
	Capacity int `yaml:"capacity"`
}

// Timeout returns the configured per-process timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured capture limit or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// ToolchainVersion returns the fixed toolchain version.
func (c *Config) ToolchainVersion() string {
	if c.Toolchain.Version != "" {
		return c.Toolchain.Version
	}
	return DefaultToolchainVersion
}

// ArgumentParser returns the configured parser name, defaulting to none.
func (c *Config) ArgumentParser() string {
	if c.Toolchain.ArgumentParser != "" {
		return c.Toolchain.ArgumentParser
	}
	return ParserNone
}

// DisassemblerArgv splits the disassembler command into an argv prefix.
func (c *Config) DisassemblerArgv() ([]string, error) {
	cmd := c.Disassembler.Command
	if cmd == "" {
		cmd = DefaultDisassembler
	}
	argv, err := shlex.Split(cmd)
	if err != nil {
		return nil, fmt.Errorf("splitting disassembler command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("disassembler command produced empty argv")
	}
	return argv, nil
}

// StoreCapacity returns the result cache size.
func (c *Config) StoreCapacity() int {
	if c.Store.Capacity > 0 {
		return c.Store.Capacity
	}
	return DefaultStoreCapacity
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	switch c.ArgumentParser() {
	case ParserNone, ParserHelp:
	default:
		return fmt.Errorf("toolchain.argument_parser: unknown parser %q", c.Toolchain.ArgumentParser)
	}
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	if _, err := c.DisassemblerArgv(); err != nil {
		return err
	}
	return nil
}

// LoadResult holds the parsed config and where it was found.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load walks upward from dir looking for a .runasm file. A missing file
// yields a default Config.
func Load(dir string) (*LoadResult, error) {
	path, err := findConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &LoadResult{Config: &Config{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// findConfig returns the nearest .runasm at or above dir, or "".
func findConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
