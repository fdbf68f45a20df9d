// Package flusher implements the flusher daemon: a producer/consumer pair
// that bounds a journal's in-memory footprint by periodically persisting
// batches of (position, entry) pairs to an external sink, gated by a
// pluggable Predicate.
package flusher
