package runner

// Result holds the output of a process execution. A non-zero ExitCode is a
// normal outcome, not an error.
type Result struct {
	RunID     string // unique identifier for this run
	ExitCode  int    // process exit code
	Stdout    []byte // captured stdout (may be truncated)
	Stderr    []byte // captured stderr (may be truncated)
	Truncated bool   // true if output exceeded the size cap
}
