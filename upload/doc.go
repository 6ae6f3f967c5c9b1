// Package upload implements the upload coordinator: validated file
// submissions with metadata and chunking configuration, and status polling
// driven by the pure state machine in core (Advance). The coordinator defines
// no scheduler; callers choose the polling cadence and terminal statuses are
// served from the session without further remote calls.
package upload
