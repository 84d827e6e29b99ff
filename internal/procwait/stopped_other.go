//go:build !linux && !windows

package procwait

// pollForStoppedChildren has no portable side-effect-free implementation
// off Linux. Direct terminal stops are still observed through the
// SIGTSTP listener; anything else is a transparent continuation.
func pollForStoppedChildren() bool {
	return false
}
