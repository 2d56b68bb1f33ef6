// Package core implements the daemon's per-device state machine: the
// panel/button/component store, the module registry with feature-gated
// access, the core handle given out to modules and to the socket layer, and
// the event fan-out to modules.
//
// # Shared state and lock order
//
// Panels, buttons and the component map are shared between the render worker
// (reader) and editors (writers) behind reader-writer locks. Every code path
// that takes more than one lock acquires them in this global order:
//
//	device -> stack -> panel -> button -> component map
//
// Callbacks into modules (AddComponent, SetComponentValue, ...) run while the
// button's write lock is held, so modules must not re-enter the same button.
//
// # Events
//
// Mutating operations emit an SDCoreEvent to every registered module except
// the one that performed the mutation, each dispatch on its own goroutine so
// a slow module cannot stall the rest. Event payloads that carry "old"
// snapshots are serialized to raw form first, severing aliasing with the
// live tree.
package core
