// Package api contains the core building blocks of the flowstate engine: the
// plain-data flow definition, the in-memory flow state, the reducer actions,
// and the contracts implemented by storage adapters, codecs and persisters.
//
// Most users interact with the higher-level flowstate package, which
// re-exports selected types and helpers from this package. The api package is
// intended for advanced use cases, custom storage adapters, or custom codecs.
//
// # Definitions and runtime config
//
// A FlowDefinition is a serializable graph of steps and their allowed
// transitions. Definitions are immutable once constructed and validated
// eagerly, before any reducer call. Anything that cannot be serialized
// (resolver functions for branch steps, loggers, clocks) lives in a separate
// RuntimeConfig passed alongside the definition, so a definition can always
// be transmitted and stored as plain data.
//
// # State
//
// FlowState is the full state of one flow instance: current step, the opaque
// caller-owned context bag, the navigable path stack, the append-only history
// audit log, and completion status. PersistedState adds the __meta envelope
// stamped by the persister. InstanceRecord wraps a persisted state with its
// composite address (flow, variant, instance) for key-value backends.
//
// # Contracts
//
// Store is the uniform get/set/remove contract over storage backends, with
// EnumerableStore as an optional capability for listing and bulk removal.
// Codec converts persisted states to and from their storage representation.
// Persister layers TTL, versioning/migration and validation policy over a
// Store. Observer receives save/restore/error callbacks for logging and
// metrics.
package api
