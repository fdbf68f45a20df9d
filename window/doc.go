// Package window implements the windowing daemon: it tails a journal of
// fine-grained chunks, buffers them per a pluggable policy.WindowPolicy,
// and appends coarser output entries back to the same journal - flushing
// early when the policy says to, and unconditionally on a completion
// marker.
package window
