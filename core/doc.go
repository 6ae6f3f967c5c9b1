// Package core provides the foundational domain types, interfaces and session
// state used by FileSearch Studio. It defines the core abstractions for:
//
//   - Stores (remote document containers enabling grounded retrieval)
//   - Upload tasks (asynchronous file ingestion with a monotonic status machine)
//   - Chat messages and citations (an append-only per-session transcript)
//   - Sessions (one operator's credential, cache, queue and transcript)
//   - The RemoteService contract every knowledge-base backend implements
//
// The package intentionally keeps implementation concerns (HTTP backends,
// polling cadence, presentation) out of scope, exposing small interfaces to
// enable custom backends and surfaces. All durable state lives behind
// RemoteService; everything here is process-local and session-scoped.
package core
