// Package disasm runs the external disassembler against a staged artifact
// and decodes its JSON listing.
package disasm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deixis/runasm/internal/runner"
)

// Mode selects the record shape the disassembler emits.
type Mode string

const (
	// ModeText emits {"text": ...} records only.
	ModeText Mode = ""
	// ModeAddressed emits records carrying address and opcode bytes.
	ModeAddressed Mode = "1"
)

// Instruction is one decoded record of the disassembler listing.
type Instruction struct {
	Address *uint64  `json:"address,omitempty"`
	Opcodes []string `json:"opcodes,omitempty"`
	Text    string   `json:"text"`
}

// Listing is the ordered disassembly of an artifact.
type Listing []Instruction

// String renders the listing one instruction per line.
func (l Listing) String() string {
	var b strings.Builder
	for _, in := range l {
		if in.Address != nil {
			fmt.Fprintf(&b, "%08x  %-12s ", *in.Address, strings.Join(in.Opcodes, " "))
		}
		b.WriteString(in.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// CommandRunner executes the disassembler process.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts runner.ExecOptions) (*runner.Result, error)
}

// Stage names where a disassembly failed.
type Stage string

const (
	StageSpawn  Stage = "spawn"
	StageDecode Stage = "decode"
)

// Error reports that no listing could be produced for Path. Callers treat
// it as "disassembly unavailable"; the build itself stays valid.
type Error struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("disassembling %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Invoker runs a disassembler command.
type Invoker struct {
	Runner  CommandRunner
	Command []string // argv prefix, e.g. ["./runcpu/disassemble.py"]
}

// Args returns the full argv for disassembling path in mode.
func (i *Invoker) Args(path string, mode Mode) []string {
	argv := make([]string, 0, len(i.Command)+2)
	argv = append(argv, i.Command...)
	argv = append(argv, path)
	if mode != ModeText {
		argv = append(argv, string(mode))
	}
	return argv
}

// Disassemble runs the disassembler against path and decodes its stdout.
// The exit code is not consulted; only a decodable payload counts.
func (i *Invoker) Disassemble(ctx context.Context, path string, mode Mode) (Listing, error) {
	if len(i.Command) == 0 {
		return nil, &Error{Path: path, Stage: StageSpawn, Err: fmt.Errorf("no disassembler configured")}
	}

	res, err := i.Runner.Run(ctx, i.Args(path, mode), runner.ExecOptions{})
	if err != nil {
		return nil, &Error{Path: path, Stage: StageSpawn, Err: err}
	}

	listing, err := Decode(res.Stdout)
	if err != nil {
		if res.Truncated {
			err = fmt.Errorf("%w (output truncated at %d bytes)", err, len(res.Stdout))
		}
		if res.ExitCode != 0 {
			err = fmt.Errorf("%w (exit %d: %s)", err, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
		}
		return nil, &Error{Path: path, Stage: StageDecode, Err: err}
	}
	return listing, nil
}

// Decode parses a JSON array of instruction records. Trailing data after
// the array is rejected.
func Decode(data []byte) (Listing, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var listing Listing
	if err := dec.Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}
	if listing == nil {
		return nil, fmt.Errorf("decoding listing: expected array, got null")
	}
	if dec.More() {
		return nil, fmt.Errorf("decoding listing: trailing data after array")
	}
	return listing, nil
}
