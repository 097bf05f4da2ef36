// Package flowstate provides a declarative, framework-agnostic state machine
// for multi-step linear and branching user flows (onboarding, checkout,
// surveys) with pluggable persistence of flow progress.
//
// Flowstate is designed to be embedded: the engine is a pure reducer over a
// plain-data flow definition, and the persistence layer speaks a uniform
// key-value contract over multiple storage backends. Any caller that can
// invoke a function and await a storage call can drive it; no rendering,
// routing or UI framework binding is assumed.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. FlowDefinition
//  2. Reduce
//  3. Store
//  4. Persister
//  5. Session
//
// # FlowDefinition
//
// A FlowDefinition is a serializable graph of steps and their allowed
// transitions. A step either points at a single destination, declares a set
// of branch options, or is terminal. Definitions are validated eagerly, with
// every broken reference reported at once, and stay plain data: resolver
// functions for branch steps live in a separate RuntimeConfig.
//
// Definitions are assembled literally or with the fluent FlowBuilder:
//
//	def := flowstate.NewFlow("onboarding").
//	    Step("welcome", "profile").
//	    Choice("profile", "work", "personal").
//	    Step("work", "done").
//	    Step("personal", "done").
//	    Terminal("done").
//	    MustBuild()
//
// # Reduce
//
// Reduce is a pure, synchronous transition function over
// (state, action, definition): NEXT and SKIP advance the flow, BACK pops the
// navigation stack, SET_CONTEXT updates the opaque context bag, RESET starts
// over and RESTORE splices in previously persisted state. Flow-authoring
// bugs return errors; recoverable conditions (a stale navigation target, a
// resolver that is not ready) degrade to "stay where you are" so flow UIs
// never crash on navigation.
//
// # Store
//
// A Store adapts a storage backend to a uniform get/set/remove contract with
// optional enumeration. Backends included: in-memory, files, SQLite,
// PostgreSQL, Redis, MongoDB, and a wrapper for any caller-supplied
// key-value interface. Key formatting is an injected function, so the same
// adapter serves flat, user-scoped or fully composite flow:variant:instance
// addressing. Serialization is a pluggable Codec per store (JSON by
// default).
//
// # Persister
//
// The Persister layers policy over a Store: it stamps save metadata, expires
// records past their TTL, discards or migrates records whose version no
// longer matches, applies a caller validation predicate, and reports
// lifecycle events to an Observer. Storage failures degrade to "acts as if
// nothing was saved" rather than propagating into navigation code.
//
// # Session
//
// Session bundles a definition, runtime config, current state and an
// optional persister behind a mutex: one owner for one flow instance, with
// the serialized dispatch that concurrent UI call sites need.
//
// For runnable programs, see the examples directory.
package flowstate
