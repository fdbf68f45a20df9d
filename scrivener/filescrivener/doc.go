// Package filescrivener implements the file-backed scrivener.Scrivener
// variant: one JSON file per record, a sentinel lock file for cross-process
// write exclusion, and an fsnotify directory watch (raced against a bounded
// poll) driving the same wake.Gate contract the in-memory variant uses.
//
// The on-disk layout is:
//
//	journal.lock                      - zero-byte sentinel, exclusively flocked during writes
//	head.txt                          - best-effort cache of the highest assigned position
//	NNNNNNNNNNNNNNNNNNNN.json         - one file per record, 20-digit zero-padded position
//	NNNNNNNNNNNNNNNNNNNN.json.tmp     - transient; removed by the next writer that collides with it
//
// There is no recovery format version beyond the current one: a reader
// opening a directory written by an incompatible build should expect
// Decode errors, not silent misinterpretation (the schemaVersion field on
// each envelope exists for exactly this future-proofing).
package filescrivener
