// Package runasm adapts a run-assembly toolchain and its disassembler to a
// compile-and-inspect pipeline.
package runasm

// Version is the runasm release version.
const Version = "0.3.0"
