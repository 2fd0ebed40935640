// Package engine contains the generation progression loop.
// This is the heartbeat of the game.
//
// ARCHITECTURAL RULE: The Engine owns the population and the schedule. It
// never renders or transports anything; it hands every generation to the
// emission callback and leaves the rest to the host.
package engine
