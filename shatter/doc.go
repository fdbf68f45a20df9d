// Package shatter implements the shattering daemon: it tails a journal
// from the position it observed at start, explodes each matching source
// entry into zero-or-more chunks via a policy.ShatterPolicy, and appends
// those chunks followed by a completion marker - the mirror image of the
// window package, which folds chunks back down into coarser output.
package shatter
