// Package policy holds the small decision interfaces shared by the window
// and shatter daemons: when an accumulating window should emit, how a
// shatter daemon should explode one source entry into chunks, and how a
// drained window's chunks become one output. None of these hold state of
// their own - Window[C] carries the state, policies just answer
// questions about it - so every policy here is safe to share across many
// concurrent windows.
package policy
