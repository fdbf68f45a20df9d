// Package scrivener defines the append-only typed journal contract shared
// by the in-memory and file-backed variants (see the memscrivener and
// filescrivener packages). A Scrivener[E] is a mapping from a dense,
// monotonic Position to an entry of type E, plus forward tailing, backward
// snapshots and typed waits over that mapping.
package scrivener
