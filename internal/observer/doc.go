// Package observer defines the event sink used by the protocol engines.
//
// The Spreadtrum and MediaTek engines report progress percentages, leveled log
// messages, busy-state toggles, and structured errors through the Observer
// interface. The engines only ever call observers; they never implement them.
// The CLI wires in a terminal progress renderer, tests wire in recording
// observers, and library users can supply their own.
//
// Observer calls are synchronous and follow call order, with no buffering or
// delivery guarantees beyond that. Implementations must return quickly: the
// callers sit in the middle of timed device exchanges.
package observer
