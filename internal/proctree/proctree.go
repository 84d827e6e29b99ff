// Package proctree provides best-effort termination of a process and
// its descendants. Every function swallows races with process exit:
// signalling a pid that is already gone is not an error worth reporting.
//
// Full process-group delivery is only available where the kernel has
// job-control semantics. On Windows the package degrades to terminating
// the direct process; grandchildren may survive.
package proctree

// Signal is the portable subset of signals the terminator needs.
type Signal int

const (
	// SigTerm requests graceful termination.
	SigTerm Signal = 15
	// SigKill forces termination.
	SigKill Signal = 9
)
