// Package router implements the routing layer: a registry of typed
// "blocks", a per-ritual tag scope, and a selection algorithm that walks
// the registry forward, picking at each step the block that best matches
// the current tag state, until the accumulated value satisfies the
// ritual's declared target type.
package router
